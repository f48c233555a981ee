package logging

import "log/slog"

// Field names shared by every sensor component.
const (
	FieldService   = "service"
	FieldRequestID = "request_id"
	FieldIP        = "ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldFile      = "file"
	FieldRuleID    = "rule_id"
	FieldEventType = "event_type"
	FieldCommand   = "command"
	FieldInterface = "interface"
)

func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration records a duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns an attribute for err. A nil error yields an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

func File(path string) slog.Attr {
	return slog.String(FieldFile, path)
}

func RuleID(id string) slog.Attr {
	return slog.String(FieldRuleID, id)
}

func EventType(eventType string) slog.Attr {
	return slog.String(FieldEventType, eventType)
}

func Command(cmd string) slog.Attr {
	return slog.String(FieldCommand, cmd)
}

func Interface(name string) slog.Attr {
	return slog.String(FieldInterface, name)
}
