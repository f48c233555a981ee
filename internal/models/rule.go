package models

// Rule is one detection rule line from the custom rules file.
type Rule struct {
	ID      string `json:"id" yaml:"id"`
	Content string `json:"content" yaml:"content"`
	SID     string `json:"sid,omitempty" yaml:"sid,omitempty"`
	Msg     string `json:"msg,omitempty" yaml:"msg,omitempty"`
	Action  string `json:"action,omitempty" yaml:"action,omitempty"`
}

// RulesList is the payload of GET /rule.
type RulesList struct {
	Rules []Rule `json:"rules" yaml:"rules"`
	Count int    `json:"count" yaml:"count"`
}

// RuleRequest is the body of POST /rule. RuleType and Filename are accepted
// for compatibility and ignored: the sensor manages a single rules file.
type RuleRequest struct {
	RuleContent string `json:"rule_content"`
	RuleType    string `json:"rule_type,omitempty"`
	Filename    string `json:"filename,omitempty"`
}
