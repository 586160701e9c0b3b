package odata

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnsupportedOperator   = errors.New("unsupported filter operator")
	ErrUnsupportedConnective = errors.New("unsupported filter connective")
	ErrUnsupportedValue      = errors.New("unsupported filter value")
	ErrInvalidDate           = errors.New("invalid date")
	ErrUnknownField          = errors.New("unknown field")
)

// Operator is a filter comparison or string-match operator.
type Operator string

const (
	Eq         Operator = "eq"
	Ne         Operator = "ne"
	Gt         Operator = "gt"
	Ge         Operator = "ge"
	Lt         Operator = "lt"
	Le         Operator = "le"
	Contains   Operator = "contains"
	StartsWith Operator = "startswith"
	EndsWith   Operator = "endswith"
)

// IsComparison reports whether op is written infix ("field eq value").
func (op Operator) IsComparison() bool {
	switch op {
	case Eq, Ne, Gt, Ge, Lt, Le:
		return true
	}
	return false
}

// IsFunction reports whether op is written as a call ("contains(field,value)").
func (op Operator) IsFunction() bool {
	switch op {
	case Contains, StartsWith, EndsWith:
		return true
	}
	return false
}

// Connective joins filter clauses.
type Connective string

const (
	And Connective = "and"
	Or  Connective = "or"
)

// Condition is a single field/operator/value triple.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// Render returns the condition as a filter clause.
func (c Condition) Render() (string, error) {
	lit, err := Literal(c.Value)
	if err != nil {
		return "", fmt.Errorf("field %s: %w", c.Field, err)
	}
	switch {
	case c.Operator.IsComparison():
		return fmt.Sprintf("%s %s %s", c.Field, c.Operator, lit), nil
	case c.Operator.IsFunction():
		return fmt.Sprintf("%s(%s,%s)", c.Operator, c.Field, lit), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOperator, c.Operator)
	}
}

// Literal renders v as an OData literal. Strings are single-quoted with embedded
// quotes doubled; times are UTC instants; nil is null.
func Literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		return quote(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case time.Time:
		return formatInstant(x), nil
	case *time.Time:
		if x == nil {
			return "null", nil
		}
		return formatInstant(*x), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return quote(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
