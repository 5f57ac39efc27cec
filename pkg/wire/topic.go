package wire

import "strings"

// Topic suffixes and well-known topics, relative to the platform prefix.
const (
	// SuffixAtt carries device → client state broadcasts.
	SuffixAtt = "att"

	// SuffixCmd carries client → device commands.
	SuffixCmd = "cmd"

	// DefaultPrefix is the platform prefix when no namespace is configured.
	DefaultPrefix = "pza"

	// StructureBase is the base of the structure attribute.
	StructureBase = "_/structure"

	// StatusBase is the base of the platform status attribute.
	StatusBase = "_/status"

	// NotificationsBase is the base of the platform notifications attribute.
	NotificationsBase = "_/notifications"
)

// Prefix returns the topic prefix for a namespace.
func Prefix(namespace string) string {
	namespace = strings.Trim(namespace, "/")
	if namespace == "" {
		return DefaultPrefix
	}
	return namespace + "/" + DefaultPrefix
}

// Join joins topic segments with "/", skipping empty segments.
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// AttTopic returns the state topic of an attribute base.
func AttTopic(base string) string {
	return Join(base, SuffixAtt)
}

// CmdTopic returns the command topic of an attribute base.
func CmdTopic(base string) string {
	return Join(base, SuffixCmd)
}

// TrimSuffix strips a trailing /att or /cmd from a topic.
func TrimSuffix(topic string) string {
	topic = strings.TrimSuffix(topic, "/"+SuffixAtt)
	return strings.TrimSuffix(topic, "/"+SuffixCmd)
}
