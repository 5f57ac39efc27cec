package discovery

import (
	"fmt"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodePlatformTXT creates the TXT records of a platform.
func EncodePlatformTXT(info *PlatformInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	txt[TXTKeySecurity] = SecurityMTLS
	if info.SecurityDisabled {
		txt[TXTKeySecurity] = SecurityPlain
	}

	if info.Namespace != "" {
		txt[TXTKeyNamespace] = info.Namespace
	}
	if info.Backend != "" {
		txt[TXTKeyBackend] = info.Backend
	}
	if info.Version != "" {
		txt[TXTKeyVersion] = info.Version
	}
	return txt
}

// DecodePlatformTXT parses the TXT records of a platform.
func DecodePlatformTXT(txt TXTRecordMap) (*PlatformInfo, error) {
	info := &PlatformInfo{}

	sec, ok := txt[TXTKeySecurity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeySecurity)
	}
	switch sec {
	case SecurityMTLS:
	case SecurityPlain:
		info.SecurityDisabled = true
	default:
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeySecurity, sec)
	}

	info.Namespace = txt[TXTKeyNamespace]
	info.Backend = txt[TXTKeyBackend]
	info.Version = txt[TXTKeyVersion]
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to a slice of "key=value" strings.
// This format is commonly used by mDNS libraries.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, ok := strings.Cut(s, "=")
		if ok {
			txt[k] = v
		} else if k != "" {
			// Key without value (boolean flag)
			txt[k] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
