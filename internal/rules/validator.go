package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError describes why a rule line was rejected. Message is the
// operator-facing text returned by the API unchanged.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

var validActions = map[string]bool{
	"alert":  true,
	"drop":   true,
	"reject": true,
	"pass":   true,
	"log":    true,
}

// Validate performs a structural check of a single Suricata rule line.
// Checks run in a fixed order and the first failure is returned. Comment
// lines are always valid.
func Validate(rule string) error {
	rule = strings.TrimSpace(rule)

	if rule == "" {
		return invalid("Rule cannot be empty")
	}
	if strings.HasPrefix(rule, "#") {
		return nil
	}

	parts := strings.Split(rule, "(")
	if len(parts) != 2 {
		return invalid("Rule must contain header and options parts separated by '('")
	}
	header := strings.TrimSpace(parts[0])
	options := strings.TrimSpace(parts[1])

	fields := strings.Fields(header)
	if len(fields) < 7 {
		return invalid("Header must contain at least: action, proto, src_ip, src_port, direction, dst_ip, dst_port")
	}
	if action := fields[0]; !validActions[action] {
		return invalid("Invalid action: %s. Must be one of: alert, drop, reject, pass, log", action)
	}
	if dir := fields[4]; dir != "->" && dir != "<>" {
		return invalid("Invalid direction operator: %s. Must be -> or <>", dir)
	}

	if !strings.HasSuffix(options, ")") {
		return invalid("Options must end with ')'")
	}
	opts := strings.Split(strings.TrimSuffix(options, ")"), ";")
	if strings.TrimSpace(opts[0]) == "" {
		return invalid("At least one option is required")
	}

	var hasSID, hasMsg bool
	for _, opt := range opts {
		opt = strings.TrimSpace(opt)
		hasSID = hasSID || strings.HasPrefix(opt, "sid:")
		hasMsg = hasMsg || strings.HasPrefix(opt, "msg:")
	}
	if !hasSID {
		return invalid("Missing required option: sid")
	}
	if !hasMsg {
		return invalid("Missing required option: msg")
	}

	for _, opt := range opts {
		opt = strings.TrimSpace(opt)
		if !strings.HasPrefix(opt, "sid:") {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(opt, "sid:"))
		if _, err := strconv.ParseUint(strings.TrimPrefix(value, "+"), 10, 64); err != nil {
			return invalid("Invalid sid format: %s. Must be a number", value)
		}
	}

	return nil
}
