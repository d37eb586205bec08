package engine

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"rulegate/internal/metadata"
)

func TestFieldValueUnmarshal(t *testing.T) {
	var record RecordContext
	payload := `{
		"name": "Alice",
		"tags": ["a", "b"],
		"count": 42,
		"price": 19.99,
		"flag": true,
		"missing": null
	}`
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got := record["name"].Flatten(); got != "Alice" {
		t.Errorf("name = %q", got)
	}
	if got := record["tags"].Flatten(); got != "a, b" {
		t.Errorf("tags = %q", got)
	}
	if got := record["count"].Flatten(); got != "42" {
		t.Errorf("count = %q", got)
	}
	if got := record["price"].Flatten(); got != "19.99" {
		t.Errorf("price = %q", got)
	}
	if got := record["flag"].Flatten(); got != "true" {
		t.Errorf("flag = %q", got)
	}
	if !record["missing"].IsEmpty() {
		t.Error("null should be empty")
	}
}

func TestFieldValueIsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		value FieldValue
		want  bool
	}{
		{"empty string", StringValue(""), true},
		{"whitespace", StringValue("   \t"), true},
		{"text", StringValue("x"), false},
		{"empty seq", SeqValue(), true},
		{"seq of blanks", SeqValue("", "  "), true},
		{"seq with value", SeqValue("", "x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateCondition(t *testing.T) {
	tests := []struct {
		name    string
		value   FieldValue
		cond    metadata.Condition
		operand string
		want    bool
	}{
		{"not_empty on text", StringValue("hi"), metadata.CondNotEmpty, "", true},
		{"not_empty on blank", StringValue("  "), metadata.CondNotEmpty, "", false},
		{"is_empty on blank", StringValue(" "), metadata.CondIsEmpty, "", true},
		{"is_empty on text", StringValue("x"), metadata.CondIsEmpty, "", false},
		{"equals match", StringValue("Urgent"), metadata.CondEquals, "Urgent", true},
		{"equals case sensitive", StringValue("urgent"), metadata.CondEquals, "Urgent", false},
		{"not_equals", StringValue("a"), metadata.CondNotEquals, "b", true},
		{"contains", StringValue("phone call"), metadata.CondContains, "phone", true},
		{"contains miss", StringValue("email"), metadata.CondContains, "phone", false},
		{"not_contains", StringValue("email"), metadata.CondNotContains, "phone", true},
		{"greater_than", StringValue("10"), metadata.CondGreaterThan, "5", true},
		{"greater_than equal is false", StringValue("5"), metadata.CondGreaterThan, "5", false},
		{"greater_than non-numeric value", StringValue("abc"), metadata.CondGreaterThan, "5", false},
		{"greater_than non-numeric operand", StringValue("10"), metadata.CondGreaterThan, "abc", false},
		{"greater_than decimal", StringValue("2.5"), metadata.CondGreaterThan, "2.4", true},
		{"less_than", StringValue("3"), metadata.CondLessThan, "5", true},
		{"less_than trims", StringValue(" 3 "), metadata.CondLessThan, "5", true},
		{"regex bare pattern", StringValue("abc123"), metadata.CondRegexMatch, `\d+`, true},
		{"regex delimited", StringValue("ABC"), metadata.CondRegexMatch, "/abc/i", true},
		{"regex hash delimiter", StringValue("a/b"), metadata.CondRegexMatch, "#a/b#", true},
		{"regex malformed", StringValue("x"), metadata.CondRegexMatch, "/[unclosed/", false},
		{"regex unknown flag", StringValue("x"), metadata.CondRegexMatch, "/x/q", false},
		{"regex empty pattern", StringValue("x"), metadata.CondRegexMatch, "", false},
		{"unknown condition", StringValue("x"), metadata.Condition("bogus"), "", false},
		{"seq contains across join", SeqValue("red", "blue"), metadata.CondContains, "blue", true},
		{"seq equals flattened", SeqValue("a", "b"), metadata.CondEquals, "a, b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateCondition(tt.value, tt.cond, tt.operand); got != tt.want {
				t.Errorf("EvaluateCondition(%v, %s, %q) = %v, want %v",
					tt.value, tt.cond, tt.operand, got, tt.want)
			}
		})
	}
}

func TestEvaluateConditionProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties := gopter.NewProperties(params)

	properties.Property("not_empty is the negation of is_empty", prop.ForAll(
		func(s string) bool {
			v := StringValue(s)
			return EvaluateCondition(v, metadata.CondNotEmpty, "") !=
				EvaluateCondition(v, metadata.CondIsEmpty, "")
		},
		gen.AnyString(),
	))

	properties.Property("not_empty means some non-whitespace rune", prop.ForAll(
		func(s string) bool {
			return EvaluateCondition(StringValue(s), metadata.CondNotEmpty, "") ==
				(strings.TrimSpace(s) != "")
		},
		gen.AnyString(),
	))

	properties.Property("equals and not_equals are complementary", prop.ForAll(
		func(a, b string) bool {
			v := StringValue(a)
			return EvaluateCondition(v, metadata.CondEquals, b) !=
				EvaluateCondition(v, metadata.CondNotEquals, b)
		},
		gen.AnyString(), gen.AnyString(),
	))

	properties.Property("greater_than matches integer ordering", prop.ForAll(
		func(a, b int) bool {
			got := EvaluateCondition(
				StringValue(strconv.Itoa(a)), metadata.CondGreaterThan, strconv.Itoa(b))
			return got == (a > b)
		},
		gen.IntRange(-1000000, 1000000), gen.IntRange(-1000000, 1000000),
	))

	properties.Property("never panics on arbitrary operands", prop.ForAll(
		func(value, operand string) (ok bool) {
			defer func() {
				if recover() != nil {
					ok = false
				}
			}()
			for _, c := range metadata.Conditions {
				EvaluateCondition(StringValue(value), c.Kind, operand)
			}
			return true
		},
		gen.AnyString(), gen.AnyString(),
	))

	properties.TestingRun(t)
}
