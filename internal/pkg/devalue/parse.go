package devalue

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrSyntax is returned by Parse for input that is not a literal produced by Stringify.
var ErrSyntax = errors.New("devalue: syntax error")

// Parse reads a literal produced by Stringify back into Go values:
// numbers become float64, undefined becomes Undefined, objects become map[string]any,
// arrays become []any, new Map(...) becomes map[any]any, dates become time.Time,
// bigint literals become *big.Int and regular expressions become *regexp.Regexp.
func Parse(src string) (any, error) {
	p := &parser{src: src}
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input")
	}
	return v, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) consume(s string) bool {
	if strings.HasPrefix(p.src[p.pos:], s) {
		p.pos += len(s)
		return true
	}
	return false
}

func (p *parser) expect(s string) error {
	p.skipSpace()
	if !p.consume(s) {
		return p.errorf("expected %q", s)
	}
	return nil
}

func (p *parser) value() (any, error) {
	p.skipSpace()
	switch c := p.peek(); {
	case c == '"':
		return p.str()
	case c == '[':
		return p.array()
	case c == '{':
		return p.object()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.number()
	}

	switch {
	case p.consume("null"):
		return nil, nil
	case p.consume("true"):
		return true, nil
	case p.consume("false"):
		return false, nil
	case p.consume("void 0"), p.consume("undefined"):
		return Undefined, nil
	case p.consume("NaN"):
		return math.NaN(), nil
	case p.consume("Infinity"):
		return math.Inf(1), nil
	case p.consume("new Date("):
		return p.date()
	case p.consume("new Map("):
		return p.jsMap()
	case p.consume("new RegExp("):
		return p.regexp()
	}
	return nil, p.errorf("unexpected input")
}

func (p *parser) str() (string, error) {
	start := p.pos
	p.pos++
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '\\':
			p.pos += 2
			continue
		case '"':
			p.pos++
			var s string
			if err := json.Unmarshal([]byte(p.src[start:p.pos]), &s); err != nil {
				return "", p.errorf("invalid string: %v", err)
			}
			return s, nil
		}
		p.pos++
	}
	return "", p.errorf("unterminated string")
}

func (p *parser) number() (any, error) {
	start := p.pos
	if p.consume("-") {
		if p.consume("Infinity") {
			return math.Inf(-1), nil
		}
	}
	for p.pos < len(p.src) && strings.IndexByte("0123456789.eE+-", p.src[p.pos]) >= 0 {
		p.pos++
	}
	lit := p.src[start:p.pos]
	if p.consume("n") {
		b, ok := new(big.Int).SetString(lit, 10)
		if !ok {
			return nil, p.errorf("invalid bigint %q", lit)
		}
		return b, nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, p.errorf("invalid number %q", lit)
	}
	return f, nil
}

func (p *parser) array() ([]any, error) {
	p.pos++
	out := []any{}
	p.skipSpace()
	if p.consume("]") {
		return out, nil
	}
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		p.skipSpace()
		if p.consume("]") {
			return out, nil
		}
		if !p.consume(",") {
			return nil, p.errorf("expected ',' or ']'")
		}
	}
}

func (p *parser) object() (map[string]any, error) {
	p.pos++
	out := map[string]any{}
	p.skipSpace()
	if p.consume("}") {
		return out, nil
	}
	for {
		p.skipSpace()
		key, err := p.key()
		if err != nil {
			return nil, err
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out[key] = v
		p.skipSpace()
		if p.consume("}") {
			return out, nil
		}
		if !p.consume(",") {
			return nil, p.errorf("expected ',' or '}'")
		}
	}
}

func (p *parser) key() (string, error) {
	if p.peek() == '"' {
		return p.str()
	}
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9' && p.pos > start) {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return "", p.errorf("expected object key")
	}
	return p.src[start:p.pos], nil
}

func (p *parser) date() (time.Time, error) {
	p.skipSpace()
	v, err := p.number()
	if err != nil {
		return time.Time{}, err
	}
	ms, ok := v.(float64)
	if !ok {
		return time.Time{}, p.errorf("invalid date")
	}
	if err := p.expect(")"); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(int64(ms)), nil
}

func (p *parser) jsMap() (map[any]any, error) {
	p.skipSpace()
	if p.peek() != '[' {
		return nil, p.errorf("expected entries array")
	}
	entries, err := p.array()
	if err != nil {
		return nil, err
	}
	out := make(map[any]any, len(entries))
	for _, e := range entries {
		pair, ok := e.([]any)
		if !ok || len(pair) != 2 {
			return nil, p.errorf("invalid map entry")
		}
		out[pair[0]] = pair[1]
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) regexp() (*regexp.Regexp, error) {
	p.skipSpace()
	src, err := p.str()
	if err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	p.skipSpace()
	if _, err := p.str(); err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, p.errorf("invalid regexp: %v", err)
	}
	return re, nil
}
