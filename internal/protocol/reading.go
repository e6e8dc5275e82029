package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ConditionCode is the measurement state a balance reports with each weight.
type ConditionCode int

const (
	Stable ConditionCode = iota
	Unstable
	Overload
	StableCounting
	ZeroPoint
)

var conditionTokens = map[string]ConditionCode{
	"ST": Stable,
	"US": Unstable,
	"OL": Overload,
	"QT": StableCounting,
	"WT": Stable,
	"PT": ZeroPoint,
}

// ParseConditionCode maps a two-character reply header to its condition.
func ParseConditionCode(token string) (ConditionCode, error) {
	c, ok := conditionTokens[token]
	if !ok {
		return 0, &UnknownConditionCodeError{Token: token}
	}
	return c, nil
}

func (c ConditionCode) String() string {
	switch c {
	case Stable:
		return "Stable"
	case Unstable:
		return "Unstable"
	case Overload:
		return "Overload"
	case StableCounting:
		return "Stable (counting)"
	case ZeroPoint:
		return "Zero"
	}
	return fmt.Sprintf("ConditionCode(%d)", int(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c ConditionCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Reading is one decoded weight reply.
type Reading struct {
	Value     float64       `json:"value"`
	Unit      string        `json:"unit"`
	Condition ConditionCode `json:"condition"`
}

func (r Reading) String() string {
	return fmt.Sprintf("%s %s (%s)", strconv.FormatFloat(r.Value, 'f', -1, 64), r.Unit, r.Condition)
}

// WeightFieldWidth is the width of the numeric part of a weight reply.
const WeightFieldWidth = 9

// ParseFields splits a plain reply line on commas and trims each field.
func ParseFields(line string) []string {
	fields := strings.Split(strings.TrimSpace(line), ",")
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}

// ParseWeight decodes a weight reply of the form
//
//	<condition>,<9-char numeric field><unit>
//
// e.g. "ST,+0012.345  g".
func ParseWeight(line string) (Reading, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 2 {
		return Reading{}, &MalformedWeightFieldError{
			Line:   line,
			Reason: fmt.Sprintf("expected 2 comma-separated fields, got %d", len(fields)),
		}
	}

	condition, err := ParseConditionCode(strings.TrimSpace(fields[0]))
	if err != nil {
		return Reading{}, err
	}

	raw := fields[1]
	if len(raw) < WeightFieldWidth {
		return Reading{}, &MalformedWeightFieldError{
			Line:   line,
			Reason: fmt.Sprintf("weight field shorter than %d characters", WeightFieldWidth),
		}
	}

	// Some firmware pads the value one column wider than the documented
	// nine; a unit never contains digits, so the numeric field extends over
	// any digits continuing past column nine.
	width := WeightFieldWidth
	for width < len(raw) && isDigit(raw[width]) {
		width++
	}

	number := strings.TrimSpace(raw[:width])
	value, err := parseDecimal(number)
	if err != nil {
		return Reading{}, &MalformedWeightFieldError{
			Line:   line,
			Reason: fmt.Sprintf("numeric field %q", raw[:width]),
			Err:    err,
		}
	}

	return Reading{
		Value:     value,
		Unit:      strings.TrimSpace(raw[width:]),
		Condition: condition,
	}, nil
}

// ParseNumeric decodes a line holding a single decimal number.
func ParseNumeric(line string) (float64, error) {
	field := strings.TrimSpace(line)
	v, err := parseDecimal(field)
	if err != nil {
		return 0, &MalformedNumericFieldError{Field: field, Err: err}
	}
	return v, nil
}

var errNotDecimal = errors.New("not a decimal number")

// parseDecimal accepts [+-]digits[.digits][(e|E)[+-]digits] with at least one
// mantissa digit. strconv.ParseFloat alone would also take hex floats, Inf
// and NaN.
func parseDecimal(s string) (float64, error) {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0, errNotDecimal
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := 0
		for i < len(s) && isDigit(s[i]) {
			i++
			exp++
		}
		if exp == 0 {
			return 0, errNotDecimal
		}
	}
	if i != len(s) {
		return 0, errNotDecimal
	}
	return strconv.ParseFloat(s, 64)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
