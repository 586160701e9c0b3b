package odata

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// OrderTerm is one "field [asc|desc]" entry of $orderby.
type OrderTerm struct {
	Field string
	Desc  bool
}

// Query is a parsed set of OData system query options.
type Query struct {
	Filter  Expr
	OrderBy []OrderTerm
	Top     int
	Skip    int
	Select  []string
	Expand  []string
	Count   bool
}

// ParseQuery reads $filter, $orderby, $top, $skip, $select, $expand and $count
// from a request's query values. Absent options keep their zero value.
func ParseQuery(v url.Values) (*Query, error) {
	q := &Query{}

	if s := strings.TrimSpace(v.Get("$filter")); s != "" {
		e, err := ParseFilter(s)
		if err != nil {
			return nil, fmt.Errorf("parsing $filter: %w", err)
		}
		q.Filter = e
	}

	if s := strings.TrimSpace(v.Get("$orderby")); s != "" {
		terms, err := ParseOrderBy(s)
		if err != nil {
			return nil, fmt.Errorf("parsing $orderby: %w", err)
		}
		q.OrderBy = terms
	}

	var err error
	if q.Top, err = parseCount(v, "$top"); err != nil {
		return nil, err
	}
	if q.Skip, err = parseCount(v, "$skip"); err != nil {
		return nil, err
	}

	q.Select = splitList(v.Get("$select"))
	q.Expand = splitList(v.Get("$expand"))

	if s := v.Get("$count"); s != "" {
		c, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%w: $count must be true or false", ErrSyntax)
		}
		q.Count = c
	}

	return q, nil
}

// ParseOrderBy parses a comma-separated $orderby value.
func ParseOrderBy(s string) ([]OrderTerm, error) {
	var terms []OrderTerm
	for _, part := range strings.Split(s, ",") {
		fields := strings.Fields(part)
		switch len(fields) {
		case 0:
			continue
		case 1, 2:
		default:
			return nil, fmt.Errorf("%w: invalid order term %q", ErrSyntax, part)
		}
		if !isIdentifier(fields[0]) {
			return nil, fmt.Errorf("%w: invalid field name %q", ErrSyntax, fields[0])
		}
		term := OrderTerm{Field: fields[0]}
		if len(fields) == 2 {
			switch strings.ToLower(fields[1]) {
			case "asc":
			case "desc":
				term.Desc = true
			default:
				return nil, fmt.Errorf("%w: invalid direction %q", ErrSyntax, fields[1])
			}
		}
		terms = append(terms, term)
	}
	return terms, nil
}

func parseCount(v url.Values, key string) (int, error) {
	s := v.Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrSyntax, key)
	}
	return n, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return nonBlank(strings.Split(s, ","))
}
