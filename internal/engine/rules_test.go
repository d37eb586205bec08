package engine

import (
	"testing"

	"rulegate/internal/metadata"
)

func TestEvaluateRule(t *testing.T) {
	rule := &metadata.Rule{
		TableName:        "contacts",
		RuleName:         "Phone requires name",
		TriggerField:     "phone",
		TriggerCondition: metadata.CondNotEmpty,
		RequiredField:    "contact_name",
		ErrorMessage:     "Contact name is required when a phone is given.",
	}

	t.Run("triggered with empty required field blocks", func(t *testing.T) {
		record := RecordContext{
			"phone":        StringValue("555-0100"),
			"contact_name": StringValue("  "),
		}
		result := EvaluateRule(rule, record)
		if !result.Triggered {
			t.Fatal("expected rule to trigger")
		}
		if !result.HasError {
			t.Fatal("expected error for empty required field")
		}
		if result.ErrorMessage != rule.ErrorMessage {
			t.Errorf("message = %q", result.ErrorMessage)
		}
		if result.TriggerValue != "555-0100" {
			t.Errorf("trigger snapshot = %q", result.TriggerValue)
		}
	})

	t.Run("triggered with filled required field passes", func(t *testing.T) {
		record := RecordContext{
			"phone":        StringValue("555-0100"),
			"contact_name": StringValue("Alice"),
		}
		result := EvaluateRule(rule, record)
		if !result.Triggered || result.HasError {
			t.Fatalf("triggered=%v hasError=%v", result.Triggered, result.HasError)
		}
		if result.RequiredValue != "Alice" {
			t.Errorf("required snapshot = %q", result.RequiredValue)
		}
	})

	t.Run("not triggered when condition unmet", func(t *testing.T) {
		record := RecordContext{
			"phone":        StringValue(""),
			"contact_name": StringValue(""),
		}
		result := EvaluateRule(rule, record)
		if result.Triggered || result.HasError {
			t.Fatalf("triggered=%v hasError=%v", result.Triggered, result.HasError)
		}
	})

	t.Run("missing fields behave as empty", func(t *testing.T) {
		result := EvaluateRule(rule, RecordContext{})
		if result.Triggered {
			t.Fatal("absent trigger field must not trigger not_empty")
		}
	})

	t.Run("numeric condition on garbage never triggers", func(t *testing.T) {
		numRule := &metadata.Rule{
			TriggerField:     "amount",
			TriggerCondition: metadata.CondGreaterThan,
			TriggerValue:     "100",
			RequiredField:    "approval",
		}
		record := RecordContext{"amount": StringValue("abc")}
		if EvaluateRule(numRule, record).Triggered {
			t.Fatal("non-numeric value must not satisfy greater_than")
		}
	})

	t.Run("blank error message falls back to default", func(t *testing.T) {
		bare := &metadata.Rule{
			TriggerField:     "phone",
			TriggerCondition: metadata.CondNotEmpty,
			RequiredField:    "contact_name",
		}
		record := RecordContext{"phone": StringValue("x")}
		result := EvaluateRule(bare, record)
		if result.ErrorMessage != "This field is required." {
			t.Errorf("fallback message = %q", result.ErrorMessage)
		}
	})
}

func TestValidateRule(t *testing.T) {
	valid := &metadata.Rule{
		TableName:        "contacts",
		RuleName:         "r1",
		TriggerField:     "phone",
		TriggerCondition: metadata.CondNotEmpty,
		RequiredField:    "contact_name",
		ErrorMessage:     "required",
	}
	if details := ValidateRule(valid); len(details) != 0 {
		t.Fatalf("expected valid rule, got %v", details)
	}

	empty := &metadata.Rule{}
	details := ValidateRule(empty)
	if len(details) != 6 {
		t.Fatalf("expected 6 details for empty rule, got %d: %v", len(details), details)
	}

	badCond := *valid
	badCond.TriggerCondition = metadata.Condition("sometimes")
	details = ValidateRule(&badCond)
	if len(details) != 1 || details[0].Field != "triggerCondition" {
		t.Fatalf("expected single triggerCondition detail, got %v", details)
	}
}
