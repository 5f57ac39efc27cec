// Package version parses and compares the platform protocol version that
// platforms advertise over mDNS.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Current is the platform protocol version this client speaks: the CBOR
// envelope with integer keys and the /att, /cmd topic split.
const Current = "1.0"

// ErrIncompatible is returned by Check when the major versions differ.
var ErrIncompatible = errors.New("incompatible platform version")

// ProtocolVersion is a parsed "major.minor" protocol version.
type ProtocolVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (ProtocolVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return ProtocolVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// MustParse is Parse for constants.
func MustParse(s string) ProtocolVersion {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as "major.minor".
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v ProtocolVersion) Compatible(other ProtocolVersion) bool {
	return v.Major == other.Major
}

// Less orders versions by major then minor.
func (v ProtocolVersion) Less(other ProtocolVersion) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	return v.Minor < other.Minor
}

// Check reports whether a platform advertising version advertised can be
// used by this client. Platforms that advertise nothing are accepted.
func Check(advertised string) error {
	if advertised == "" {
		return nil
	}
	v, err := Parse(advertised)
	if err != nil {
		return err
	}
	if !MustParse(Current).Compatible(v) {
		return fmt.Errorf("%w: platform %s, client %s", ErrIncompatible, v, Current)
	}
	return nil
}
