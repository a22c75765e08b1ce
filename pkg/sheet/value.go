package sheet

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// decimalPattern is plain decimal notation with an optional exponent.
// strconv.ParseFloat alone also accepts hex floats, underscores and Inf.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Kind classifies a cell value
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	default:
		return "empty"
	}
}

// Value is a single scalar cell: empty, text or number.
// The zero Value is empty.
type Value struct {
	kind   Kind
	text   string
	number float64
}

// Empty returns the empty cell value
func Empty() Value {
	return Value{}
}

// Text returns a text value. Blank strings are empty cells.
func Text(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Value{}
	}
	return Value{kind: KindText, text: s}
}

// Number returns a numeric value
func Number(f float64) Value {
	return Value{kind: KindNumber, text: strconv.FormatFloat(f, 'f', -1, 64), number: f}
}

// Parse classifies a raw cell string. Numeric strings become numbers but keep
// their original text so String does not reformat them.
func Parse(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Value{}
	}
	if f, ok := parseDecimal(trimmed); ok {
		return Value{kind: KindNumber, text: raw, number: f}
	}
	return Value{kind: KindText, text: raw}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsEmpty() bool {
	return v.kind == KindEmpty
}

// String returns the trimmed text form of the value
func (v Value) String() string {
	return strings.TrimSpace(v.text)
}

// Float returns the numeric form of the value. Text that parses as a number
// is accepted.
func (v Value) Float() (float64, error) {
	switch v.kind {
	case KindNumber:
		return v.number, nil
	case KindText:
		f, ok := parseDecimal(v.String())
		if !ok {
			return 0, fmt.Errorf("%q is not a number", v.String())
		}
		return f, nil
	default:
		return 0, fmt.Errorf("empty cell is not a number")
	}
}

func parseDecimal(s string) (float64, bool) {
	if !decimalPattern.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
