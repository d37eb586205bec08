package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"rulegate/internal/metadata"
)

// FieldValue is one submitted form value: either a single string or a
// sequence of strings (hosts submit multi-value inputs as lists).
type FieldValue struct {
	Single string
	Seq    []string
	IsSeq  bool
}

// RecordContext is the field data submitted for a save, keyed by field name.
type RecordContext map[string]FieldValue

func StringValue(s string) FieldValue {
	return FieldValue{Single: s}
}

func SeqValue(vals ...string) FieldValue {
	return FieldValue{Seq: vals, IsSeq: true}
}

// UnmarshalJSON accepts a string, a list of strings, or a bare scalar
// (hosts are loosely typed; numbers and booleans arrive as their literals).
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	switch val := raw.(type) {
	case nil:
		*v = FieldValue{}
	case string:
		*v = FieldValue{Single: val}
	case []any:
		seq := make([]string, len(val))
		for i, item := range val {
			seq[i] = scalarString(item)
		}
		*v = FieldValue{Seq: seq, IsSeq: true}
	default:
		*v = FieldValue{Single: scalarString(val)}
	}
	return nil
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	if v.IsSeq {
		return json.Marshal(v.Seq)
	}
	return json.Marshal(v.Single)
}

func scalarString(val any) string {
	switch s := val.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return fmt.Sprintf("%v", s)
	}
}

// Flatten normalizes the value to a single string, joining sequence
// elements with ", ".
func (v FieldValue) Flatten() string {
	if v.IsSeq {
		return strings.Join(v.Seq, ", ")
	}
	return v.Single
}

// IsEmpty reports whether the value is empty: a sequence is empty when every
// element trims to nothing, a scalar when its trimmed form is the empty string.
func (v FieldValue) IsEmpty() bool {
	if v.IsSeq {
		for _, s := range v.Seq {
			if strings.TrimSpace(s) != "" {
				return false
			}
		}
		return true
	}
	return strings.TrimSpace(v.Single) == ""
}

// EvaluateCondition decides whether an observed value meets a trigger
// condition. It is pure and never fails: unrecognized condition kinds,
// non-numeric operands on numeric comparisons, and malformed regex patterns
// all yield false.
func EvaluateCondition(value FieldValue, cond metadata.Condition, operand string) bool {
	str := value.Flatten()

	switch cond {
	case metadata.CondNotEmpty:
		return !value.IsEmpty()

	case metadata.CondIsEmpty:
		return value.IsEmpty()

	case metadata.CondEquals:
		return str == operand

	case metadata.CondNotEquals:
		return str != operand

	case metadata.CondContains:
		return strings.Contains(str, operand)

	case metadata.CondNotContains:
		return !strings.Contains(str, operand)

	case metadata.CondGreaterThan:
		a, b, ok := parseNumericPair(str, operand)
		return ok && a > b

	case metadata.CondLessThan:
		a, b, ok := parseNumericPair(str, operand)
		return ok && a < b

	case metadata.CondRegexMatch:
		re, ok := compilePattern(operand)
		return ok && re.MatchString(str)

	default:
		return false
	}
}

func parseNumericPair(a, b string) (float64, float64, bool) {
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return fa, fb, true
}

// compilePattern compiles a delimited pattern ("/foo/i", "#bar#", "~baz~m").
// Patterns without a recognized delimiter prefix are wrapped in "/.../"
// first. Supported trailing flags are i, m and s; anything else, or a
// pattern that fails to compile, yields ok=false.
func compilePattern(pattern string) (*regexp.Regexp, bool) {
	if pattern == "" {
		return nil, false
	}
	if !strings.ContainsRune("/#~", rune(pattern[0])) {
		pattern = "/" + pattern + "/"
	}

	delim := pattern[0]
	end := strings.LastIndexByte(pattern[1:], delim)
	if end < 0 {
		return nil, false
	}
	body := pattern[1 : end+1]
	flags := pattern[end+2:]

	var mods string
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			mods += string(f)
		default:
			return nil, false
		}
	}
	if mods != "" {
		body = "(?" + mods + ")" + body
	}

	re, err := regexp.Compile(body)
	if err != nil {
		return nil, false
	}
	return re, true
}
