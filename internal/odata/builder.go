// Package odata builds and parses the OData query options ($filter, $orderby,
// $top, $skip, $select, $expand, $count) used by list endpoints.
package odata

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// InstantLayout is the wire format for absolute instants in filter clauses.
const InstantLayout = "2006-01-02T15:04:05.000Z"

// DateLayout is the accepted format for calendar-day bounds.
const DateLayout = "2006-01-02"

// DateRange bounds a field by calendar days. Either bound may be empty.
type DateRange struct {
	Field     string
	StartDate string
	EndDate   string
}

// Builder accumulates OData query options and renders them as a query string.
// A Builder is meant for one query; call Reset to reuse it.
//
// The first invalid input (an unsupported operator, an unparseable date) is
// recorded and returned by Build.
type Builder struct {
	loc *time.Location

	filters []string
	orderBy string
	top     int
	skip    int
	selects []string
	expands []string
	count   bool

	err error
}

// Option configures a Builder.
type Option func(*Builder)

// WithLocation sets the time zone calendar days are interpreted in.
// The default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(b *Builder) {
		if loc != nil {
			b.loc = loc
		}
	}
}

// NewBuilder creates an empty Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{loc: time.Local}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Filter appends filter clauses. Blank clauses are ignored. All clauses are
// ANDed together at build time.
func (b *Builder) Filter(clauses ...string) *Builder {
	for _, c := range clauses {
		if c = strings.TrimSpace(c); c != "" {
			b.filters = append(b.filters, c)
		}
	}
	return b
}

// DateRangeFilter appends an inclusive start-of-day bound and an inclusive
// end-of-day bound on r.Field, one clause each.
func (b *Builder) DateRangeFilter(r DateRange) *Builder {
	if r.Field == "" {
		return b
	}
	if r.StartDate != "" {
		day, err := b.parseDay(r.StartDate)
		if err != nil {
			return b.fail(err)
		}
		b.filters = append(b.filters, fmt.Sprintf("%s ge %s", r.Field, formatInstant(day)))
	}
	if r.EndDate != "" {
		day, err := b.parseDay(r.EndDate)
		if err != nil {
			return b.fail(err)
		}
		end := day.AddDate(0, 0, 1).Add(-time.Millisecond)
		b.filters = append(b.filters, fmt.Sprintf("%s le %s", r.Field, formatInstant(end)))
	}
	return b
}

// FilterConditions renders conds, joins them with combineWith and appends the
// result as a single clause. More than one condition is parenthesised so the
// group keeps its meaning when ANDed with other clauses.
func (b *Builder) FilterConditions(conds []Condition, combineWith Connective) *Builder {
	if len(conds) == 0 {
		return b
	}
	if combineWith != And && combineWith != Or {
		return b.fail(fmt.Errorf("%w: %q", ErrUnsupportedConnective, combineWith))
	}

	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		clause, err := c.Render()
		if err != nil {
			return b.fail(err)
		}
		parts = append(parts, clause)
	}

	if len(parts) == 1 {
		b.filters = append(b.filters, parts[0])
		return b
	}
	b.filters = append(b.filters, "("+strings.Join(parts, " "+string(combineWith)+" ")+")")
	return b
}

// OrderBy sets the ordering, e.g. "startTime desc".
func (b *Builder) OrderBy(order string) *Builder {
	if order = strings.TrimSpace(order); order != "" {
		b.orderBy = order
	}
	return b
}

// Top limits the number of results. Non-positive values are ignored.
func (b *Builder) Top(n int) *Builder {
	if n > 0 {
		b.top = n
	}
	return b
}

// Skip offsets the results. Non-positive values are ignored.
func (b *Builder) Skip(n int) *Builder {
	if n > 0 {
		b.skip = n
	}
	return b
}

// Paginate selects a 1-based page of pageSize results.
func (b *Builder) Paginate(page, pageSize int) *Builder {
	return b.Top(pageSize).Skip((page - 1) * pageSize)
}

// Select restricts the returned fields.
func (b *Builder) Select(fields ...string) *Builder {
	b.selects = nonBlank(fields)
	return b
}

// Expand includes related entities.
func (b *Builder) Expand(relations ...string) *Builder {
	b.expands = nonBlank(relations)
	return b
}

// Count asks the server to include the total match count.
func (b *Builder) Count(count bool) *Builder {
	b.count = count
	return b
}

// Err returns the first error recorded while building, if any.
func (b *Builder) Err() error {
	return b.err
}

// Build renders the accumulated options as "?$filter=...&$orderby=...".
// It returns an empty string when nothing was set.
func (b *Builder) Build() (string, error) {
	if b.err != nil {
		return "", b.err
	}

	var params []string
	if len(b.filters) > 0 {
		params = append(params, "$filter="+escape(strings.Join(b.filters, " and ")))
	}
	if b.orderBy != "" {
		params = append(params, "$orderby="+escape(b.orderBy))
	}
	if b.top > 0 {
		params = append(params, "$top="+strconv.Itoa(b.top))
	}
	if b.skip > 0 {
		params = append(params, "$skip="+strconv.Itoa(b.skip))
	}
	if len(b.selects) > 0 {
		params = append(params, "$select="+escape(strings.Join(b.selects, ",")))
	}
	if len(b.expands) > 0 {
		params = append(params, "$expand="+escape(strings.Join(b.expands, ",")))
	}
	if b.count {
		params = append(params, "$count=true")
	}

	if len(params) == 0 {
		return "", nil
	}
	return "?" + strings.Join(params, "&"), nil
}

// Reset clears all accumulated options and any recorded error.
// The configured location is kept.
func (b *Builder) Reset() *Builder {
	*b = Builder{loc: b.loc}
	return b
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *Builder) parseDay(s string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), b.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return day, nil
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(InstantLayout)
}

// escape percent-encodes a query value. Spaces become %20, not '+'.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func nonBlank(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
