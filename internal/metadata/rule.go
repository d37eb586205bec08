package metadata

// Condition is the closed set of trigger condition kinds a rule may use.
type Condition string

const (
	CondNotEmpty    Condition = "not_empty"
	CondIsEmpty     Condition = "is_empty"
	CondEquals      Condition = "equals"
	CondNotEquals   Condition = "not_equals"
	CondContains    Condition = "contains"
	CondNotContains Condition = "not_contains"
	CondGreaterThan Condition = "greater_than"
	CondLessThan    Condition = "less_than"
	CondRegexMatch  Condition = "regex_match"
)

// Conditions lists every supported condition kind with its display label,
// in editor dropdown order.
var Conditions = []struct {
	Kind  Condition
	Label string
}{
	{CondNotEmpty, "is not empty"},
	{CondIsEmpty, "is empty"},
	{CondEquals, "equals"},
	{CondNotEquals, "does not equal"},
	{CondContains, "contains"},
	{CondNotContains, "does not contain"},
	{CondGreaterThan, "is greater than"},
	{CondLessThan, "is less than"},
	{CondRegexMatch, "matches pattern (regex)"},
}

// ParseCondition validates a condition tag. Unknown tags return false; stored
// rules with unknown tags still evaluate (to false) rather than erroring.
func ParseCondition(s string) (Condition, bool) {
	for _, c := range Conditions {
		if string(c.Kind) == s {
			return c.Kind, true
		}
	}
	return "", false
}

// NeedsOperand reports whether the condition compares against an operand.
// Emptiness checks ignore the operand entirely.
func (c Condition) NeedsOperand() bool {
	return c != CondNotEmpty && c != CondIsEmpty
}

// Rule is a validation directive scoped to one table: when the trigger
// field meets the trigger condition, the required field must be non-empty.
type Rule struct {
	Num              int64     `json:"num,omitempty"`
	TableName        string    `json:"tableName"`
	RuleName         string    `json:"ruleName"`
	TriggerField     string    `json:"triggerField"`
	TriggerCondition Condition `json:"triggerCondition"`
	TriggerValue     string    `json:"triggerValue"`
	RequiredField    string    `json:"requiredField"`
	ErrorMessage     string    `json:"errorMessage"`
	IsActive         bool      `json:"isActive"`
	RuleOrder        int       `json:"ruleOrder"`
	CreatedDate      string    `json:"createdDate,omitempty"`
	UpdatedDate      string    `json:"updatedDate,omitempty"`
	CreatedBy        string    `json:"-"`
	UpdatedBy        string    `json:"-"`
}
