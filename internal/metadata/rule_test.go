package metadata

import "testing"

func TestParseCondition(t *testing.T) {
	for _, c := range Conditions {
		got, ok := ParseCondition(string(c.Kind))
		if !ok || got != c.Kind {
			t.Errorf("ParseCondition(%q) = %v, %v", c.Kind, got, ok)
		}
	}

	for _, bad := range []string{"", "NOT_EMPTY", "equals ", "bogus"} {
		if _, ok := ParseCondition(bad); ok {
			t.Errorf("ParseCondition(%q) accepted", bad)
		}
	}
}

func TestNeedsOperand(t *testing.T) {
	tests := []struct {
		cond Condition
		want bool
	}{
		{CondNotEmpty, false},
		{CondIsEmpty, false},
		{CondEquals, true},
		{CondNotEquals, true},
		{CondContains, true},
		{CondNotContains, true},
		{CondGreaterThan, true},
		{CondLessThan, true},
		{CondRegexMatch, true},
	}
	for _, tt := range tests {
		if got := tt.cond.NeedsOperand(); got != tt.want {
			t.Errorf("%s.NeedsOperand() = %v, want %v", tt.cond, got, tt.want)
		}
	}
}

func TestConditionsListIsComplete(t *testing.T) {
	if len(Conditions) != 9 {
		t.Fatalf("condition catalog has %d entries", len(Conditions))
	}
	if Conditions[0].Kind != CondNotEmpty {
		t.Errorf("first condition = %s", Conditions[0].Kind)
	}
	for _, c := range Conditions {
		if c.Label == "" {
			t.Errorf("condition %s has no label", c.Kind)
		}
	}
}
