package memory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aevon-lab/classgroup/internal/core/value"
	"github.com/shopspring/decimal"
)

// ErrInvalidWhere is returned for where clauses outside the supported SQL subset.
var ErrInvalidWhere = errors.New("invalid where clause")

type tokenType int

const (
	tokEOF tokenType = iota
	tokIdent
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
	tokIs
	tokNull
)

type token struct {
	typ tokenType
	val string
	pos int
}

// lexer tokenizes the SQL subset produced by the predicate builder:
// identifiers (bare or double-quoted), single-quoted strings with ''
// escapes, numbers, comparison operators and AND/OR/NOT/IS/NULL.
type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{typ: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	ch := l.input[l.pos]

	switch {
	case isDigit(ch) || (ch == '-' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1])):
		l.pos++
		for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || l.input[l.pos] == '.') {
			l.pos++
		}
		return token{typ: tokNumber, val: l.input[start:l.pos], pos: start}, nil
	case ch == '\'':
		s, err := l.readQuoted('\'')
		if err != nil {
			return token{}, err
		}
		return token{typ: tokString, val: s, pos: start}, nil
	case ch == '"':
		s, err := l.readQuoted('"')
		if err != nil {
			return token{}, err
		}
		return token{typ: tokIdent, val: s, pos: start}, nil
	case isIdentStart(ch):
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos++
		}
		word := l.input[start:l.pos]
		switch strings.ToUpper(word) {
		case "AND":
			return token{typ: tokAnd, val: word, pos: start}, nil
		case "OR":
			return token{typ: tokOr, val: word, pos: start}, nil
		case "NOT":
			return token{typ: tokNot, val: word, pos: start}, nil
		case "IS":
			return token{typ: tokIs, val: word, pos: start}, nil
		case "NULL":
			return token{typ: tokNull, val: word, pos: start}, nil
		}
		return token{typ: tokIdent, val: word, pos: start}, nil
	case ch == '(':
		l.pos++
		return token{typ: tokLParen, val: "(", pos: start}, nil
	case ch == ')':
		l.pos++
		return token{typ: tokRParen, val: ")", pos: start}, nil
	case ch == '=':
		l.pos++
		return token{typ: tokOp, val: "=", pos: start}, nil
	case ch == '!' || ch == '<' || ch == '>':
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '=' || (ch == '<' && l.input[l.pos] == '>')) {
			l.pos++
		}
		op := l.input[start:l.pos]
		if op == "!" {
			return token{}, fmt.Errorf("%w: unexpected '!' at position %d", ErrInvalidWhere, start)
		}
		return token{typ: tokOp, val: op, pos: start}, nil
	}

	return token{}, fmt.Errorf("%w: unexpected character %q at position %d", ErrInvalidWhere, ch, start)
}

// readQuoted reads a quoted run where a doubled quote stands for itself.
func (l *lexer) readQuoted(quote byte) (string, error) {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == quote {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == quote {
				sb.WriteByte(quote)
				l.pos += 2
				continue
			}
			l.pos++
			return sb.String(), nil
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return "", fmt.Errorf("%w: unterminated quote starting at position %d", ErrInvalidWhere, start)
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

// truth is SQL three-valued logic: comparisons involving NULL are unknown,
// and only rows evaluating to true are selected.
type truth int

const (
	truthFalse truth = iota
	truthTrue
	truthUnknown
)

func truthOf(b bool) truth {
	if b {
		return truthTrue
	}
	return truthFalse
}

// condition is a parsed where clause evaluated against one row.
type condition interface {
	eval(row map[string]value.Value) (truth, error)
}

// matches reports whether cond is true for row.
func matches(cond condition, row map[string]value.Value) (bool, error) {
	t, err := cond.eval(row)
	return t == truthTrue, err
}

type andCond struct{ left, right condition }

func (c andCond) eval(row map[string]value.Value) (truth, error) {
	l, err := c.left.eval(row)
	if err != nil || l == truthFalse {
		return truthFalse, err
	}
	r, err := c.right.eval(row)
	if err != nil {
		return truthFalse, err
	}
	if l == truthTrue {
		return r, nil
	}
	// l is unknown
	if r == truthFalse {
		return truthFalse, nil
	}
	return truthUnknown, nil
}

type orCond struct{ left, right condition }

func (c orCond) eval(row map[string]value.Value) (truth, error) {
	l, err := c.left.eval(row)
	if err != nil || l == truthTrue {
		return l, err
	}
	r, err := c.right.eval(row)
	if err != nil {
		return truthFalse, err
	}
	if l == truthFalse {
		return r, nil
	}
	// l is unknown
	if r == truthTrue {
		return truthTrue, nil
	}
	return truthUnknown, nil
}

type notCond struct{ inner condition }

func (c notCond) eval(row map[string]value.Value) (truth, error) {
	t, err := c.inner.eval(row)
	if err != nil {
		return truthFalse, err
	}
	switch t {
	case truthTrue:
		return truthFalse, nil
	case truthFalse:
		return truthTrue, nil
	}
	return truthUnknown, nil
}

type nullCond struct {
	field  string
	negate bool
}

func (c nullCond) eval(row map[string]value.Value) (truth, error) {
	v, ok := row[c.field]
	if !ok {
		return truthFalse, fmt.Errorf("%w: %q", errUnknownField, c.field)
	}
	return truthOf(v.IsNull() != c.negate), nil
}

type compareCond struct {
	field string
	op    string
	lit   value.Value
}

var errUnknownField = errors.New("unknown field")

func (c compareCond) eval(row map[string]value.Value) (truth, error) {
	v, ok := row[c.field]
	if !ok {
		return truthFalse, fmt.Errorf("%w: %q", errUnknownField, c.field)
	}
	if v.IsNull() || c.lit.IsNull() {
		return truthUnknown, nil
	}
	if v.Kind != c.lit.Kind {
		return truthFalse, fmt.Errorf("type mismatch: field %q is %s, compared with %s", c.field, v.Kind, c.lit.Kind)
	}

	cmp := value.Compare(v, c.lit)
	switch c.op {
	case "=":
		return truthOf(cmp == 0), nil
	case "<>", "!=":
		return truthOf(cmp != 0), nil
	case "<":
		return truthOf(cmp < 0), nil
	case "<=":
		return truthOf(cmp <= 0), nil
	case ">":
		return truthOf(cmp > 0), nil
	case ">=":
		return truthOf(cmp >= 0), nil
	}
	return truthFalse, fmt.Errorf("%w: unsupported operator %q", ErrInvalidWhere, c.op)
}

type matchAll struct{}

func (matchAll) eval(map[string]value.Value) (truth, error) { return truthTrue, nil }

type parser struct {
	lex *lexer
	cur token
}

// parseWhere parses a where clause. An empty clause matches every row.
func parseWhere(input string) (condition, error) {
	if strings.TrimSpace(input) == "" {
		return matchAll{}, nil
	}

	p := &parser{lex: &lexer{input: input}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.typ != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at position %d", ErrInvalidWhere, p.cur.val, p.cur.pos)
	}
	return cond, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) parseOr() (condition, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.typ == tokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orCond{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (condition, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur.typ == tokAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = andCond{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (condition, error) {
	if p.cur.typ == tokNot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notCond{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (condition, error) {
	if p.cur.typ == tokLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur.typ != tokRParen {
			return nil, fmt.Errorf("%w: expected ')' at position %d", ErrInvalidWhere, p.cur.pos)
		}
		return inner, p.advance()
	}

	if p.cur.typ != tokIdent {
		return nil, fmt.Errorf("%w: expected field name at position %d", ErrInvalidWhere, p.cur.pos)
	}
	field := p.cur.val
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.cur.typ == tokIs {
		if err := p.advance(); err != nil {
			return nil, err
		}
		negate := false
		if p.cur.typ == tokNot {
			negate = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if p.cur.typ != tokNull {
			return nil, fmt.Errorf("%w: expected NULL at position %d", ErrInvalidWhere, p.cur.pos)
		}
		return nullCond{field: field, negate: negate}, p.advance()
	}

	if p.cur.typ != tokOp {
		return nil, fmt.Errorf("%w: expected comparison operator at position %d", ErrInvalidWhere, p.cur.pos)
	}
	op := p.cur.val
	if err := p.advance(); err != nil {
		return nil, err
	}

	var lit value.Value
	switch p.cur.typ {
	case tokNumber:
		d, err := decimal.NewFromString(p.cur.val)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q: %v", ErrInvalidWhere, p.cur.val, err)
		}
		lit = value.Number(d)
	case tokString:
		lit = value.Text(p.cur.val)
	case tokNull:
		// "= NULL" is legal SQL that is never true
		lit = value.Null
	default:
		return nil, fmt.Errorf("%w: expected literal at position %d", ErrInvalidWhere, p.cur.pos)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	return compareCond{field: field, op: op, lit: lit}, nil
}
