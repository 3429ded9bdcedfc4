package typeexpr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Errors
var (
	ErrEmptyInput      = errors.New("typeexpr: empty input")
	ErrUnexpectedEnd   = errors.New("typeexpr: unexpected end of input")
	ErrUnexpectedToken = errors.New("typeexpr: unexpected token")
)

// SyntaxError reports where parsing failed.
type SyntaxError struct {
	Input string
	Pos   int
	Err   error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%v at offset %d in %q", e.Err, e.Pos, e.Input)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// fundamental lists the keywords that combine into one fundamental type.
var fundamental = map[string]bool{
	"void": true, "bool": true, "char": true, "wchar_t": true,
	"char8_t": true, "char16_t": true, "char32_t": true,
	"short": true, "int": true, "long": true,
	"signed": true, "unsigned": true,
	"float": true, "double": true,
}

// IsFundamental reports whether name spells a fundamental type, such as
// "int" or "unsigned long long".
func IsFundamental(name string) bool {
	words := strings.Fields(name)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !fundamental[w] {
			return false
		}
	}
	return true
}

// elaborated keywords are accepted and dropped before a type name.
var elaborated = map[string]bool{
	"class": true, "struct": true, "union": true, "enum": true, "typename": true,
}

// Parse parses a type spelling.
func Parse(input string) (Node, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}

	p := &parser{input: input}
	node, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, p.errorf(ErrUnexpectedToken)
	}
	return node, nil
}

// parser holds parser state.
type parser struct {
	input string
	pos   int
}

func (p *parser) parseType() (Node, error) {
	isConst, isVolatile := p.parseQualifiers()

	base, err := p.parseBase()
	if err != nil {
		return nil, err
	}

	c, v := p.parseQualifiers()
	isConst, isVolatile = isConst || c, isVolatile || v

	var node Node = base
	if isConst || isVolatile {
		node = &Qualified{Inner: base, Const: isConst, Volatile: isVolatile}
	}

	for {
		p.skipSpace()
		switch {
		case p.peek() == '*':
			p.consume()
			c, v := p.parseQualifiers()
			node = &Pointer{Pointee: node, Const: c, Volatile: v}
		case strings.HasPrefix(p.input[p.pos:], "&&"):
			p.pos += 2
			node = &Reference{Referent: node, RValue: true}
		case p.peek() == '&':
			p.consume()
			node = &Reference{Referent: node}
		default:
			if strings.HasPrefix(p.input[p.pos:], "...") {
				p.pos += 3
				node = &PackExpansion{Pattern: node}
			}
			return node, nil
		}
	}
}

// parseQualifiers consumes any run of const and volatile keywords.
func (p *parser) parseQualifiers() (isConst, isVolatile bool) {
	for {
		save := p.pos
		switch p.parseIdentifier() {
		case "const":
			isConst = true
		case "volatile":
			isVolatile = true
		default:
			p.pos = save
			return isConst, isVolatile
		}
	}
}

func (p *parser) parseBase() (*Named, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, p.errorf(ErrUnexpectedEnd)
	}

	ident := p.parseIdentifier()
	for elaborated[ident] {
		ident = p.parseIdentifier()
	}
	if ident == "" {
		return nil, p.errorf(ErrUnexpectedToken)
	}

	if fundamental[ident] {
		words := []string{ident}
		for {
			save := p.pos
			next := p.parseIdentifier()
			if !fundamental[next] {
				p.pos = save
				break
			}
			words = append(words, next)
		}
		return &Named{Name: strings.Join(words, " ")}, nil
	}

	named := &Named{Name: ident}
	for {
		p.skipSpace()
		if p.peek() == '<' && !named.HasArgs {
			p.consume()
			args, err := p.parseTemplateArgs()
			if err != nil {
				return nil, err
			}
			named.Args = args
			named.HasArgs = true
			continue
		}
		if !strings.HasPrefix(p.input[p.pos:], "::") {
			return named, nil
		}
		p.pos += 2
		next := p.parseIdentifier()
		if next == "" {
			return nil, p.errorf(ErrUnexpectedToken)
		}
		if named.HasArgs {
			named = &Named{Scope: named, Name: next}
		} else {
			named.Name += "::" + next
		}
	}
}

func (p *parser) parseTemplateArgs() ([]Node, error) {
	var args []Node
	p.skipSpace()
	if p.peek() == '>' {
		p.consume()
		return args, nil
	}

	for {
		arg, err := p.parseTemplateArg()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		p.skipSpace()
		switch p.consume() {
		case ',':
			continue
		case '>':
			return args, nil
		case 0:
			return nil, p.errorf(ErrUnexpectedEnd)
		default:
			p.pos--
			return nil, p.errorf(ErrUnexpectedToken)
		}
	}
}

func (p *parser) parseTemplateArg() (Node, error) {
	p.skipSpace()
	c := p.peek()
	if c == '-' || (c >= '0' && c <= '9') {
		return p.parseNumber()
	}
	return p.parseType()
}

func (p *parser) parseNumber() (Node, error) {
	start := p.pos
	if p.peek() == '-' {
		p.consume()
	}
	for c := p.peek(); c >= '0' && c <= '9'; c = p.peek() {
		p.consume()
	}
	val, err := strconv.ParseInt(p.input[start:p.pos], 10, 64)
	if err != nil {
		p.pos = start
		return nil, p.errorf(ErrUnexpectedToken)
	}
	return &Integer{Value: val}, nil
}

// parseIdentifier consumes an identifier after optional spaces and returns
// it, or returns "" without consuming anything but spaces.
func (p *parser) parseIdentifier() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '_' || c == '~' && p.pos == start || isLetter(c) || (p.pos > start && isDigit(c)) {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

// Helper methods

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) consume() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	c := p.input[p.pos]
	p.pos++
	return c
}

func (p *parser) errorf(err error) error {
	return &SyntaxError{Input: p.input, Pos: p.pos, Err: err}
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
