package wire

// Unit is the SI unit of a numeric payload.
type Unit struct {
	Prefix SIPrefix `cbor:"1,keyasint,omitempty"`
	Unit   SIUnit   `cbor:"2,keyasint"`
}

// String returns the unit symbol, e.g. "mV".
func (u Unit) String() string {
	return u.Prefix.Symbol() + u.Unit.Symbol()
}

// SIPrefix is a decimal multiplier.
type SIPrefix uint8

const (
	PrefixNone  SIPrefix = 0
	PrefixPico  SIPrefix = 1
	PrefixNano  SIPrefix = 2
	PrefixMicro SIPrefix = 3
	PrefixMilli SIPrefix = 4
	PrefixKilo  SIPrefix = 5
	PrefixMega  SIPrefix = 6
	PrefixGiga  SIPrefix = 7
)

// Symbol returns the prefix symbol.
func (p SIPrefix) Symbol() string {
	switch p {
	case PrefixPico:
		return "p"
	case PrefixNano:
		return "n"
	case PrefixMicro:
		return "µ"
	case PrefixMilli:
		return "m"
	case PrefixKilo:
		return "k"
	case PrefixMega:
		return "M"
	case PrefixGiga:
		return "G"
	default:
		return ""
	}
}

// Exponent returns the power of ten the prefix stands for.
func (p SIPrefix) Exponent() int {
	switch p {
	case PrefixPico:
		return -12
	case PrefixNano:
		return -9
	case PrefixMicro:
		return -6
	case PrefixMilli:
		return -3
	case PrefixKilo:
		return 3
	case PrefixMega:
		return 6
	case PrefixGiga:
		return 9
	default:
		return 0
	}
}

// SIUnit is a base or derived unit.
type SIUnit uint8

const (
	UnitNone    SIUnit = 0
	UnitVolt    SIUnit = 1
	UnitAmpere  SIUnit = 2
	UnitWatt    SIUnit = 3
	UnitOhm     SIUnit = 4
	UnitHertz   SIUnit = 5
	UnitSecond  SIUnit = 6
	UnitKelvin  SIUnit = 7
	UnitCelsius SIUnit = 8
	UnitMeter   SIUnit = 9
	UnitFarad   SIUnit = 10
	UnitHenry   SIUnit = 11
	UnitJoule   SIUnit = 12
	UnitPercent SIUnit = 13
)

// Symbol returns the unit symbol.
func (u SIUnit) Symbol() string {
	switch u {
	case UnitVolt:
		return "V"
	case UnitAmpere:
		return "A"
	case UnitWatt:
		return "W"
	case UnitOhm:
		return "Ω"
	case UnitHertz:
		return "Hz"
	case UnitSecond:
		return "s"
	case UnitKelvin:
		return "K"
	case UnitCelsius:
		return "°C"
	case UnitMeter:
		return "m"
	case UnitFarad:
		return "F"
	case UnitHenry:
		return "H"
	case UnitJoule:
		return "J"
	case UnitPercent:
		return "%"
	default:
		return ""
	}
}
