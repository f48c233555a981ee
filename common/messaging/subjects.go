package messaging

import "strings"

// DefaultEveSubjectPrefix is the subject root for mirrored EVE events.
const DefaultEveSubjectPrefix = "suricata.eve"

// EveSubject returns the subject for an EVE event type, e.g.
// suricata.eve.alert. Empty event types map to "unknown" and characters
// that are not valid inside a subject token are replaced with '_'.
func EveSubject(prefix, eventType string) string {
	if prefix == "" {
		prefix = DefaultEveSubjectPrefix
	}
	return prefix + "." + subjectToken(eventType)
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
