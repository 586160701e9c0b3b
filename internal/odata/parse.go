package odata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ErrSyntax is returned for malformed $filter or $orderby expressions.
var ErrSyntax = errors.New("invalid query syntax")

// Expr is a parsed $filter expression: either a *Logical or a *Comparison.
type Expr interface {
	expr()
}

// Logical joins two expressions with and/or.
type Logical struct {
	Op    Connective
	Left  Expr
	Right Expr
}

// Comparison is "field op value" or "op(field,value)".
// Value holds nil, string, float64, bool or time.Time.
type Comparison struct {
	Field string
	Op    Operator
	Value any
}

func (*Logical) expr()    {}
func (*Comparison) expr() {}

// ParseFilter parses the subset of $filter syntax that Builder emits:
// comparisons, contains/startswith/endswith, and/or, and parentheses.
func ParseFilter(s string) (Expr, error) {
	toks, err := lex(s)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, t.text, t.pos)
	}
	return e, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokWord
	tokString
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func lex(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '\'':
			start := i
			var sb strings.Builder
			i++
			for {
				if i >= len(s) {
					return nil, fmt.Errorf("%w: unterminated string at offset %d", ErrSyntax, start)
				}
				if s[i] == '\'' {
					if i+1 < len(s) && s[i+1] == '\'' {
						sb.WriteByte('\'')
						i += 2
						continue
					}
					i++
					break
				}
				sb.WriteByte(s[i])
				i++
			}
			toks = append(toks, token{tokString, sb.String(), start})
		default:
			start := i
			for i < len(s) && !strings.ContainsRune(" \t(),'", rune(s[i])) {
				i++
			}
			toks = append(toks, token{tokWord, s[start:i], start})
		}
	}
	toks = append(toks, token{tokEOF, "", len(s)})
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, fmt.Errorf("%w: expected %s at offset %d, got %q", ErrSyntax, what, t.pos, t.text)
	}
	return t, nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: Or, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: And, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Expr, error) {
	t := p.peek()
	if t.kind == tokLParen {
		p.next()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	}

	if t.kind == tokWord && Operator(strings.ToLower(t.text)).IsFunction() &&
		p.toks[p.pos+1].kind == tokLParen {
		return p.parseFunction()
	}
	return p.parseComparison()
}

func (p *parser) parseFunction() (Expr, error) {
	op := Operator(strings.ToLower(p.next().text))
	p.next() // (
	field, err := p.parseField()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokComma, "','"); err != nil {
		return nil, err
	}
	v, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return &Comparison{Field: field, Op: op, Value: v}, nil
}

func (p *parser) parseComparison() (Expr, error) {
	field, err := p.parseField()
	if err != nil {
		return nil, err
	}
	t, err := p.expect(tokWord, "operator")
	if err != nil {
		return nil, err
	}
	op := Operator(strings.ToLower(t.text))
	if !op.IsComparison() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOperator, t.text)
	}
	v, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &Comparison{Field: field, Op: op, Value: v}, nil
}

func (p *parser) parseField() (string, error) {
	t, err := p.expect(tokWord, "field name")
	if err != nil {
		return "", err
	}
	if !isIdentifier(t.text) {
		return "", fmt.Errorf("%w: invalid field name %q", ErrSyntax, t.text)
	}
	return t.text, nil
}

func (p *parser) parseLiteral() (any, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return t.text, nil
	case tokWord:
		return parseWordLiteral(t)
	default:
		return nil, fmt.Errorf("%w: expected value at offset %d", ErrSyntax, t.pos)
	}
}

func parseWordLiteral(t token) (any, error) {
	switch strings.ToLower(t.text) {
	case "null":
		return nil, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, t.text); err == nil {
		return ts, nil
	}
	if f, err := strconv.ParseFloat(t.text, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("%w: invalid value %q at offset %d", ErrSyntax, t.text, t.pos)
}

func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokWord && strings.EqualFold(t.text, kw)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || r == '/' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
