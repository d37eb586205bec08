package metadata

import "time"

// LogEntry records one rule evaluation that triggered. Untriggered
// evaluations are never persisted. Entries are immutable once written;
// RuleNum is a best-effort reference that may dangle after rule deletion.
type LogEntry struct {
	Num           int64     `json:"num,omitempty"`
	TableName     string    `json:"tableName"`
	RecordNum     int64     `json:"recordNum"`
	RuleNum       int64     `json:"ruleNum"`
	RuleName      string    `json:"ruleName"`
	ErrorMessage  string    `json:"errorMessage"`
	TriggerField  string    `json:"triggerField"`
	TriggerValue  string    `json:"triggerValue"`
	RequiredField string    `json:"requiredField"`
	RequiredValue string    `json:"requiredValue"`
	WasBlocked    bool      `json:"wasBlocked"`
	CreatedDate   time.Time `json:"createdDate"`
	CreatedBy     string    `json:"createdBy"`
}
