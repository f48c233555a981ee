package models

// Response is the JSON envelope used by the rule and control endpoints.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// OK builds a successful envelope.
func OK(message string, data any) Response {
	return Response{Success: true, Message: message, Data: data}
}

// Fail builds a failed envelope carrying message.
func Fail(message string) Response {
	return Response{Success: false, Message: message}
}
