package coltype

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidType is returned when a type string cannot be parsed.
	ErrInvalidType = errors.New("invalid type")

	// ErrUnsupportedType is returned when a parsed type cannot back a custom column.
	ErrUnsupportedType = errors.New("unsupported type")
)

// Kind identifies the root of a type descriptor.
type Kind int

const (
	KindString Kind = iota + 1
	KindVarChar
	KindChar
	KindBoolean
	KindTinyInt
	KindSmallInt
	KindInt
	KindBigInt
	KindFloat
	KindDouble
	KindDecimal
	KindDate
	KindTimestamp
	KindBytes
	KindArray
	KindMap
	KindRow
	KindMultiset
)

var kindNames = map[Kind]string{
	KindString:    "STRING",
	KindVarChar:   "VARCHAR",
	KindChar:      "CHAR",
	KindBoolean:   "BOOLEAN",
	KindTinyInt:   "TINYINT",
	KindSmallInt:  "SMALLINT",
	KindInt:       "INT",
	KindBigInt:    "BIGINT",
	KindFloat:     "FLOAT",
	KindDouble:    "DOUBLE",
	KindDecimal:   "DECIMAL",
	KindDate:      "DATE",
	KindTimestamp: "TIMESTAMP",
	KindBytes:     "BYTES",
	KindArray:     "ARRAY",
	KindMap:       "MAP",
	KindRow:       "ROW",
	KindMultiset:  "MULTISET",
}

var kindByName = map[string]Kind{
	"STRING":    KindString,
	"VARCHAR":   KindVarChar,
	"CHAR":      KindChar,
	"BOOLEAN":   KindBoolean,
	"TINYINT":   KindTinyInt,
	"SMALLINT":  KindSmallInt,
	"INT":       KindInt,
	"INTEGER":   KindInt,
	"BIGINT":    KindBigInt,
	"FLOAT":     KindFloat,
	"DOUBLE":    KindDouble,
	"DECIMAL":   KindDecimal,
	"DATE":      KindDate,
	"TIMESTAMP": KindTimestamp,
	"BYTES":     KindBytes,
	"ARRAY":     KindArray,
	"MAP":       KindMap,
	"ROW":       KindRow,
	"MULTISET":  KindMultiset,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Descriptor is a parsed, not yet validated, type string.
type Descriptor struct {
	Kind Kind

	// Params holds length, precision or scale arguments in declaration order.
	Params []int

	// Elem is set for ARRAY and MULTISET.
	Elem *Descriptor

	// Key and Value are set for MAP.
	Key   *Descriptor
	Value *Descriptor

	// Fields is set for ROW.
	Fields []Field

	NotNull bool
}

// Field is a named member of a ROW descriptor.
type Field struct {
	Name string
	Type Descriptor
}

func (d Descriptor) String() string {
	var b strings.Builder
	d.render(&b)
	return b.String()
}

func (d Descriptor) render(b *strings.Builder) {
	b.WriteString(d.Kind.String())
	switch d.Kind {
	case KindArray, KindMultiset:
		b.WriteByte('<')
		d.Elem.render(b)
		b.WriteByte('>')
	case KindMap:
		b.WriteByte('<')
		d.Key.render(b)
		b.WriteString(", ")
		d.Value.render(b)
		b.WriteByte('>')
	case KindRow:
		b.WriteByte('<')
		for i, f := range d.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name)
			b.WriteByte(' ')
			f.Type.render(b)
		}
		b.WriteByte('>')
	default:
		if len(d.Params) > 0 {
			b.WriteByte('(')
			for i, p := range d.Params {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(strconv.Itoa(p))
			}
			b.WriteByte(')')
		}
	}
	if d.NotNull {
		b.WriteString(" NOT NULL")
	}
}

// ParseError describes a malformed type string.
type ParseError struct {
	Input  string
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid type %q at offset %d: %s", e.Input, e.Offset, e.Reason)
}

// Unwrap returns ErrInvalidType for errors.Is compatibility.
func (e *ParseError) Unwrap() error {
	return ErrInvalidType
}

// Parse parses a SQL style type string such as "ARRAY<VARCHAR(64)> NOT NULL".
// Keywords are case-insensitive.
func Parse(text string) (Descriptor, error) {
	p := &parser{input: text}
	p.next()

	d, err := p.parseType()
	if err != nil {
		return Descriptor{}, err
	}
	if p.tok.kind != tokEOF {
		return Descriptor{}, p.errorf("unexpected %q after type", p.tok.text)
	}
	return d, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokSymbol
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type parser struct {
	input string
	pos   int
	tok   token
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Input: p.input, Offset: p.tok.pos, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) next() {
	for p.pos < len(p.input) && isSpace(p.input[p.pos]) {
		p.pos++
	}
	start := p.pos
	if p.pos >= len(p.input) {
		p.tok = token{kind: tokEOF, pos: start}
		return
	}

	c := p.input[p.pos]
	switch {
	case isLetter(c):
		for p.pos < len(p.input) && (isLetter(p.input[p.pos]) || isDigit(p.input[p.pos])) {
			p.pos++
		}
		p.tok = token{kind: tokIdent, text: p.input[start:p.pos], pos: start}
	case isDigit(c):
		for p.pos < len(p.input) && isDigit(p.input[p.pos]) {
			p.pos++
		}
		p.tok = token{kind: tokNumber, text: p.input[start:p.pos], pos: start}
	case c == '`':
		end := strings.IndexByte(p.input[start+1:], '`')
		if end < 0 {
			p.pos = len(p.input)
			p.tok = token{kind: tokSymbol, text: "`", pos: start}
			return
		}
		p.pos = start + end + 2
		p.tok = token{kind: tokIdent, text: p.input[start+1 : start+1+end], pos: start}
	default:
		p.pos++
		p.tok = token{kind: tokSymbol, text: string(c), pos: start}
	}
}

func (p *parser) isKeyword(word string) bool {
	return p.tok.kind == tokIdent && strings.EqualFold(p.tok.text, word)
}

func (p *parser) isSymbol(sym string) bool {
	return p.tok.kind == tokSymbol && p.tok.text == sym
}

func (p *parser) expectSymbol(sym string) error {
	if !p.isSymbol(sym) {
		if p.tok.kind == tokEOF {
			return p.errorf("expected %q, got end of input", sym)
		}
		return p.errorf("expected %q, got %q", sym, p.tok.text)
	}
	p.next()
	return nil
}

func (p *parser) parseType() (Descriptor, error) {
	if p.tok.kind != tokIdent {
		if p.tok.kind == tokEOF {
			return Descriptor{}, p.errorf("expected type name, got end of input")
		}
		return Descriptor{}, p.errorf("expected type name, got %q", p.tok.text)
	}

	kind, ok := kindByName[strings.ToUpper(p.tok.text)]
	if !ok {
		return Descriptor{}, p.errorf("unknown type %q", p.tok.text)
	}
	p.next()

	d := Descriptor{Kind: kind}
	var err error
	switch kind {
	case KindArray, KindMultiset:
		err = p.parseElement(&d)
	case KindMap:
		err = p.parseMap(&d)
	case KindRow:
		err = p.parseRow(&d)
	default:
		d.Params, err = p.parseParams(kind)
	}
	if err != nil {
		return Descriptor{}, err
	}

	if err := p.parseNullability(&d); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

func (p *parser) parseElement(d *Descriptor) error {
	if err := p.expectSymbol("<"); err != nil {
		return err
	}
	elem, err := p.parseType()
	if err != nil {
		return err
	}
	d.Elem = &elem
	return p.expectSymbol(">")
}

func (p *parser) parseMap(d *Descriptor) error {
	if err := p.expectSymbol("<"); err != nil {
		return err
	}
	key, err := p.parseType()
	if err != nil {
		return err
	}
	if err := p.expectSymbol(","); err != nil {
		return err
	}
	value, err := p.parseType()
	if err != nil {
		return err
	}
	d.Key, d.Value = &key, &value
	return p.expectSymbol(">")
}

// parseRow accepts both ROW<a INT, b STRING> and ROW(a INT, b STRING).
func (p *parser) parseRow(d *Descriptor) error {
	closing := ">"
	switch {
	case p.isSymbol("<"):
	case p.isSymbol("("):
		closing = ")"
	default:
		return p.errorf("expected \"<\" or \"(\" after ROW")
	}
	p.next()

	for {
		if p.tok.kind != tokIdent {
			return p.errorf("expected field name")
		}
		name := p.tok.text
		p.next()

		ft, err := p.parseType()
		if err != nil {
			return err
		}
		d.Fields = append(d.Fields, Field{Name: name, Type: ft})

		if p.isSymbol(",") {
			p.next()
			continue
		}
		return p.expectSymbol(closing)
	}
}

var maxParams = map[Kind]int{
	KindVarChar:   1,
	KindChar:      1,
	KindDecimal:   2,
	KindTimestamp: 1,
}

func (p *parser) parseParams(kind Kind) ([]int, error) {
	if !p.isSymbol("(") {
		return nil, nil
	}
	limit, ok := maxParams[kind]
	if !ok {
		return nil, p.errorf("type %s takes no parameters", kind)
	}
	p.next()

	var params []int
	for {
		if p.tok.kind != tokNumber {
			return nil, p.errorf("expected number")
		}
		n, err := strconv.Atoi(p.tok.text)
		if err != nil {
			return nil, p.errorf("invalid number %q", p.tok.text)
		}
		params = append(params, n)
		if len(params) > limit {
			return nil, p.errorf("type %s takes at most %d parameters", kind, limit)
		}
		p.next()

		if p.isSymbol(",") {
			p.next()
			continue
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return params, nil
	}
}

func (p *parser) parseNullability(d *Descriptor) error {
	switch {
	case p.isKeyword("NOT"):
		p.next()
		if !p.isKeyword("NULL") {
			return p.errorf("expected NULL after NOT")
		}
		p.next()
		d.NotNull = true
	case p.isKeyword("NULL"):
		p.next()
	}
	return nil
}

func isSpace(c byte) bool  { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isLetter(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
