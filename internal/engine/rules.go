package engine

import (
	"strings"

	"rulegate/internal/metadata"
)

// RuleResult is the outcome of evaluating one rule against a record.
// TriggerValue and RequiredValue are flattened snapshots for the audit log.
type RuleResult struct {
	Triggered     bool
	HasError      bool
	ErrorMessage  string
	TriggerValue  string
	RequiredValue string
}

// EvaluateRule runs a single rule against the submitted record. A rule whose
// trigger condition is met checks the required field for emptiness; an empty
// required field carries the rule's configured error message.
func EvaluateRule(rule *metadata.Rule, record RecordContext) RuleResult {
	triggerVal := record[rule.TriggerField]
	requiredVal := record[rule.RequiredField]

	result := RuleResult{
		TriggerValue:  triggerVal.Flatten(),
		RequiredValue: requiredVal.Flatten(),
	}

	if !EvaluateCondition(triggerVal, rule.TriggerCondition, rule.TriggerValue) {
		return result
	}
	result.Triggered = true

	if requiredVal.IsEmpty() {
		result.HasError = true
		result.ErrorMessage = rule.ErrorMessage
		if result.ErrorMessage == "" {
			result.ErrorMessage = "This field is required."
		}
	}
	return result
}

// ValidateRule checks a rule at the editing boundary. Returns one detail per
// missing or invalid attribute; an empty result means the rule may be stored.
func ValidateRule(rule *metadata.Rule) []ErrorDetail {
	var details []ErrorDetail

	if strings.TrimSpace(rule.TableName) == "" {
		details = append(details, ErrorDetail{Field: "tableName", Message: "Please select a table."})
	}
	if strings.TrimSpace(rule.RuleName) == "" {
		details = append(details, ErrorDetail{Field: "ruleName", Message: "Please enter a rule name."})
	}
	if strings.TrimSpace(rule.TriggerField) == "" {
		details = append(details, ErrorDetail{Field: "triggerField", Message: "Please select a trigger field."})
	}
	if _, ok := metadata.ParseCondition(string(rule.TriggerCondition)); !ok {
		details = append(details, ErrorDetail{Field: "triggerCondition", Message: "Unknown trigger condition."})
	}
	if strings.TrimSpace(rule.RequiredField) == "" {
		details = append(details, ErrorDetail{Field: "requiredField", Message: "Please select a required field."})
	}
	if strings.TrimSpace(rule.ErrorMessage) == "" {
		details = append(details, ErrorDetail{Field: "errorMessage", Message: "Please enter an error message."})
	}

	return details
}
