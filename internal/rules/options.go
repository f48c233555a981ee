package rules

import (
	"strings"

	"github.com/telhawk-systems/telhawk-sensor/internal/models"
)

// ExtractOption returns the value of the named option, e.g. "sid" or "msg",
// from the parenthesised option list. The value is everything after the
// colon, untrimmed; double quotes are removed only when they enclose the
// whole value. The boolean is false when the option is missing or empty.
func ExtractOption(rule, name string) (string, bool) {
	start := strings.Index(rule, "(")
	end := strings.LastIndex(rule, ")")
	if start < 0 || end <= start {
		return "", false
	}

	prefix := name + ":"
	for _, opt := range strings.Split(rule[start+1:end], ";") {
		opt = strings.TrimSpace(opt)
		if !strings.HasPrefix(opt, prefix) {
			continue
		}
		value := opt[len(prefix):]
		if value == "" {
			continue
		}
		if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
			value = value[1 : len(value)-1]
		}
		return value, true
	}
	return "", false
}

// Action returns the first whitespace separated token of a rule.
func Action(rule string) string {
	fields := strings.Fields(rule)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Parse projects a rule line into its API representation.
func Parse(line string) models.Rule {
	content := strings.TrimSpace(line)
	r := models.Rule{
		ID:      ID(content),
		Content: content,
		Action:  Action(content),
	}
	r.SID, _ = ExtractOption(content, "sid")
	r.Msg, _ = ExtractOption(content, "msg")
	return r
}

// isRuleLine reports whether a file line holds a rule, as opposed to a blank
// line or a comment.
func isRuleLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && !strings.HasPrefix(trimmed, "#")
}
