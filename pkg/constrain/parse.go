package constrain

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokLParen
	tokRParen
	tokString
	tokAtom
)

type token struct {
	typ tokenType
	lit string
	pos int
}

type lexer struct {
	src string
	cur int
}

func (l *lexer) skipWhitespace() {
	for l.cur < len(l.src) {
		switch l.src[l.cur] {
		case ' ', '\t', '\n', '\r':
			l.cur++
		case ';':
			for l.cur < len(l.src) && l.src[l.cur] != '\n' {
				l.cur++
			}
		default:
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipWhitespace()
	start := l.cur
	if l.cur >= len(l.src) {
		return token{typ: tokEOF, pos: start}, nil
	}

	switch c := l.src[l.cur]; c {
	case '(':
		l.cur++
		return token{typ: tokLParen, lit: "(", pos: start}, nil
	case ')':
		l.cur++
		return token{typ: tokRParen, lit: ")", pos: start}, nil
	case '"':
		l.cur++
		for l.cur < len(l.src) {
			switch l.src[l.cur] {
			case '\\':
				l.cur += 2
				continue
			case '"':
				l.cur++
				s, err := strconv.Unquote(l.src[start:l.cur])
				if err != nil {
					return token{}, parseError(start, "invalid string literal")
				}
				return token{typ: tokString, lit: s, pos: start}, nil
			}
			l.cur++
		}
		return token{}, parseError(start, "unterminated string")
	default:
		for l.cur < len(l.src) && !strings.ContainsRune(" \t\n\r();\"", rune(l.src[l.cur])) {
			l.cur++
		}
		return token{typ: tokAtom, lit: l.src[start:l.cur], pos: start}, nil
	}
}

func parseError(pos int, msg string) error {
	return crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation, "parse error at offset %d: %s", pos, msg).
		WithDetail("offset", pos)
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

// Parse reads one event from its s-expression form, e.g.
//
//	(and (< x 3) (or (= y 1) (not (> z 0))))
//
// Numbers, true, false and double-quoted strings are literals; every other
// bare word is a variable. The head of a list must be an operator. The
// result is checked with the same rules as Compile.
func Parse(src string) (Node, error) {
	p := &parser{lex: &lexer{src: src}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	n, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	if p.tok.typ != tokEOF {
		return nil, parseError(p.tok.pos, "unexpected "+strconv.Quote(p.tok.lit)+" after event")
	}
	if err := check(n); err != nil {
		return nil, err
	}
	return n, nil
}

// MustParse is Parse for events known to be valid. It panics on error.
func MustParse(src string) Node {
	n, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return n
}

func (p *parser) parseNode() (Node, error) {
	tok := p.tok
	switch tok.typ {
	case tokEOF:
		return nil, parseError(tok.pos, "unexpected end of input")
	case tokRParen:
		return nil, parseError(tok.pos, "unexpected )")
	case tokString:
		return Lit{Value: tok.lit}, p.advance()
	case tokAtom:
		return atom(tok.lit), p.advance()
	}

	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.typ != tokAtom {
		return nil, parseError(p.tok.pos, "expected operator")
	}
	op := Operator(p.tok.lit)
	if !op.Valid() {
		return nil, parseError(p.tok.pos, "unknown operator "+strconv.Quote(p.tok.lit))
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	var operands []Node
	for p.tok.typ != tokRParen {
		if p.tok.typ == tokEOF {
			return nil, parseError(tok.pos, "unclosed (")
		}
		operand, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		operands = append(operands, operand)
	}
	return Op{Operator: op, Operands: operands}, p.advance()
}

func atom(lit string) Node {
	switch lit {
	case "true":
		return Lit{Value: true}
	case "false":
		return Lit{Value: false}
	}
	if f, err := strconv.ParseFloat(lit, 64); err == nil {
		return Lit{Value: f}
	}
	return Var{Name: lit}
}
