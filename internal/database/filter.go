package database

import (
	"fmt"
	"math"
	"strings"
	"time"

	"ht-go/internal/odata"
)

type columnKind int

const (
	kindText columnKind = iota
	kindInt
	kindTime
)

type column struct {
	name string
	kind columnKind
}

// sessionColumns maps the JSON field names clients filter and sort on to columns.
var sessionColumns = map[string]column{
	"id":                     {"id", kindText},
	"habitId":                {"habit_id", kindText},
	"status":                 {"status", kindText},
	"plannedDurationMinutes": {"planned_duration_minutes", kindInt},
	"startTime":              {"start_time", kindTime},
	"pauseTime":              {"pause_time", kindTime},
	"resumeTime":             {"resume_time", kindTime},
	"endTime":                {"end_time", kindTime},
	"pausedDurationSeconds":  {"paused_duration_seconds", kindInt},
	"actualDurationSeconds":  {"actual_duration_seconds", kindInt},
	"notes":                  {"notes", kindText},
}

var habitColumns = map[string]column{
	"id":                  {"id", kindText},
	"name":                {"name", kindText},
	"description":         {"description", kindText},
	"defaultFocusMinutes": {"default_focus_minutes", kindInt},
	"createdAt":           {"created_at", kindTime},
	"archivedAt":          {"archived_at", kindTime},
}

var comparisonSQL = map[odata.Operator]string{
	odata.Eq: "=",
	odata.Ne: "<>",
	odata.Gt: ">",
	odata.Ge: ">=",
	odata.Lt: "<",
	odata.Le: "<=",
}

// whereClause translates a parsed $filter into a SQL boolean expression with
// positional arguments. A nil expression yields "1=1".
func whereClause(e odata.Expr, cols map[string]column) (string, []any, error) {
	if e == nil {
		return "1=1", nil, nil
	}

	switch x := e.(type) {
	case *odata.Logical:
		left, largs, err := whereClause(x.Left, cols)
		if err != nil {
			return "", nil, err
		}
		right, rargs, err := whereClause(x.Right, cols)
		if err != nil {
			return "", nil, err
		}
		op := "AND"
		if x.Op == odata.Or {
			op = "OR"
		}
		return "(" + left + " " + op + " " + right + ")", append(largs, rargs...), nil

	case *odata.Comparison:
		return comparisonClause(x, cols)

	default:
		return "", nil, fmt.Errorf("%w: unexpected expression %T", odata.ErrSyntax, e)
	}
}

func comparisonClause(c *odata.Comparison, cols map[string]column) (string, []any, error) {
	col, ok := cols[c.Field]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", odata.ErrUnknownField, c.Field)
	}

	if c.Op.IsFunction() {
		s, ok := c.Value.(string)
		if !ok || col.kind != kindText {
			return "", nil, fmt.Errorf("%w: %s needs a text field and a string", odata.ErrUnsupportedValue, c.Op)
		}
		pattern := escapeLike(s)
		switch c.Op {
		case odata.Contains:
			pattern = "%" + pattern + "%"
		case odata.StartsWith:
			pattern = pattern + "%"
		case odata.EndsWith:
			pattern = "%" + pattern
		}
		return col.name + ` LIKE ? ESCAPE '\'`, []any{pattern}, nil
	}

	sqlOp, ok := comparisonSQL[c.Op]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", odata.ErrUnsupportedOperator, c.Op)
	}

	if c.Value == nil {
		switch c.Op {
		case odata.Eq:
			return col.name + " IS NULL", nil, nil
		case odata.Ne:
			return col.name + " IS NOT NULL", nil, nil
		default:
			return "", nil, fmt.Errorf("%w: null only supports eq and ne", odata.ErrUnsupportedValue)
		}
	}

	arg, err := columnValue(col, c.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %s: %w", c.Field, err)
	}
	return col.name + " " + sqlOp + " ?", []any{arg}, nil
}

// columnValue converts a parsed literal to the column's storage type.
func columnValue(col column, v any) (any, error) {
	switch col.kind {
	case kindText:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case kindInt:
		if f, ok := v.(float64); ok && f == math.Trunc(f) {
			return int64(f), nil
		}
	case kindTime:
		switch t := v.(type) {
		case time.Time:
			return t.UnixMilli(), nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err == nil {
				return parsed.UnixMilli(), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %v", odata.ErrUnsupportedValue, v)
}

// orderClause renders $orderby terms, falling back to def. The primary key is
// always appended so paging is stable.
func orderClause(terms []odata.OrderTerm, cols map[string]column, def string) (string, error) {
	if len(terms) == 0 {
		return def + ", id ASC", nil
	}

	parts := make([]string, 0, len(terms)+1)
	for _, t := range terms {
		col, ok := cols[t.Field]
		if !ok {
			return "", fmt.Errorf("%w: %q", odata.ErrUnknownField, t.Field)
		}
		dir := "ASC"
		if t.Desc {
			dir = "DESC"
		}
		parts = append(parts, col.name+" "+dir)
	}
	parts = append(parts, "id ASC")
	return strings.Join(parts, ", "), nil
}

// limitClause renders $top/$skip. SQLite needs a LIMIT before an OFFSET.
func limitClause(top, skip int) string {
	switch {
	case top > 0 && skip > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", top, skip)
	case top > 0:
		return fmt.Sprintf(" LIMIT %d", top)
	case skip > 0:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", skip)
	}
	return ""
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
