// Package devalue serializes Go values into JavaScript expression literals that can be inlined
// in a <script> element. Unlike JSON, the output keeps values JSON cannot express: NaN,
// Infinity, -0, undefined, big integers, dates, regular expressions and maps with non-string
// keys.
//
// The same walk also produces strict JSON (see JSON) for transports that need it, degrading the
// extra values the way JSON.stringify does.
package devalue

import (
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrCyclic is returned when a value references itself.
	ErrCyclic = errors.New("devalue: cyclic structure")
	// ErrUnsupportedType is returned for channels, functions and other values with no literal form.
	ErrUnsupportedType = errors.New("devalue: unsupported type")
)

// Undefined serializes to the JavaScript undefined value.
var Undefined = undefined{}

type undefined struct{}

var (
	timeType      = reflect.TypeOf(time.Time{})
	bigIntType    = reflect.TypeOf(big.Int{})
	regexpType    = reflect.TypeOf(regexp.Regexp{})
	undefinedType = reflect.TypeOf(undefined{})
	errorType     = reflect.TypeOf((*error)(nil)).Elem()
	jsonMarshaler = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshaler = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// Stringify returns v as a JavaScript expression.
func Stringify(v any) (string, error) {
	e := &encoder{mode: modeJS, seen: make(map[uintptr]struct{})}
	if err := e.encode(reflect.ValueOf(v)); err != nil {
		return "", err
	}
	return e.String(), nil
}

// JSON returns v as strict JSON. NaN and infinities become null, dates become ISO strings,
// undefined object members are omitted and big integers are written as strings.
func JSON(v any) ([]byte, error) {
	e := &encoder{mode: modeJSON, seen: make(map[uintptr]struct{})}
	if err := e.encode(reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return []byte(e.String()), nil
}

type mode int

const (
	modeJS mode = iota
	modeJSON
)

type encoder struct {
	strings.Builder
	mode mode
	seen map[uintptr]struct{}
}

func (e *encoder) encode(v reflect.Value) error {
	if !v.IsValid() {
		e.WriteString("null")
		return nil
	}

	t := v.Type()
	switch {
	case t == undefinedType:
		e.writeUndefined()
		return nil
	case t == timeType:
		e.writeTime(v.Interface().(time.Time))
		return nil
	case t == bigIntType:
		if v.CanAddr() {
			e.writeBigInt(v.Addr().Interface().(*big.Int))
		} else {
			b := v.Interface().(big.Int)
			e.writeBigInt(&b)
		}
		return nil
	case t == regexpType:
		if v.CanAddr() {
			e.writeRegexp(v.Addr().Interface().(*regexp.Regexp))
			return nil
		}
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			e.WriteString("null")
			return nil
		}
		return e.encode(v.Elem())
	case reflect.Pointer:
		if v.IsNil() {
			e.WriteString("null")
			return nil
		}
		if done, err := e.encodeSpecial(v); done {
			return err
		}
		return e.withCycleCheck(v, func() error { return e.encode(v.Elem()) })
	}

	if done, err := e.encodeSpecial(v); done {
		return err
	}

	switch v.Kind() {
	case reflect.Bool:
		e.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32:
		e.writeFloat(v.Float(), 32)
	case reflect.Float64:
		e.writeFloat(v.Float(), 64)
	case reflect.String:
		e.writeString(v.String())
	case reflect.Slice:
		if v.IsNil() {
			e.WriteString("null")
			return nil
		}
		if t.Elem().Kind() == reflect.Uint8 {
			b, _ := json.Marshal(v.Bytes())
			e.Write(b)
			return nil
		}
		return e.withCycleCheck(v, func() error { return e.encodeArray(v) })
	case reflect.Array:
		return e.encodeArray(v)
	case reflect.Map:
		if v.IsNil() {
			e.WriteString("null")
			return nil
		}
		return e.withCycleCheck(v, func() error { return e.encodeMap(v) })
	case reflect.Struct:
		return e.encodeStruct(v)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	return nil
}

// encodeSpecial handles values whose own methods define their representation.
func (e *encoder) encodeSpecial(v reflect.Value) (bool, error) {
	t := v.Type()
	if t.Kind() == reflect.Pointer {
		switch t.Elem() {
		case timeType, bigIntType, regexpType:
			return true, e.encode(v.Elem())
		}
	}
	if t.Implements(errorType) {
		e.writeString(v.Interface().(error).Error())
		return true, nil
	}
	if t.Implements(jsonMarshaler) {
		b, err := v.Interface().(json.Marshaler).MarshalJSON()
		if err != nil {
			return true, fmt.Errorf("devalue: marshal %s: %w", t, err)
		}
		return true, e.writeRawJSON(b)
	}
	if t.Implements(textMarshaler) {
		b, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return true, fmt.Errorf("devalue: marshal %s: %w", t, err)
		}
		e.writeString(string(b))
		return true, nil
	}
	return false, nil
}

func (e *encoder) withCycleCheck(v reflect.Value, fn func() error) error {
	ptr := v.Pointer()
	if ptr == 0 {
		return fn()
	}
	if _, ok := e.seen[ptr]; ok {
		return ErrCyclic
	}
	e.seen[ptr] = struct{}{}
	defer delete(e.seen, ptr)
	return fn()
}

func (e *encoder) encodeArray(v reflect.Value) error {
	e.WriteByte('[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			e.WriteByte(',')
		}
		el := v.Index(i)
		if e.mode == modeJSON && isUndefined(el) {
			e.WriteString("null")
			continue
		}
		if err := e.encode(el); err != nil {
			return err
		}
	}
	e.WriteByte(']')
	return nil
}

func (e *encoder) encodeMap(v reflect.Value) error {
	keys := v.MapKeys()
	if keyKind := v.Type().Key().Kind(); keyKind != reflect.String {
		if e.mode == modeJSON {
			return e.encodeKeyedMapAsObject(v, keys)
		}
		return e.encodeJSMap(v, keys)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	e.WriteByte('{')
	first := true
	for _, k := range keys {
		val := v.MapIndex(k)
		if e.mode == modeJSON && isUndefined(val) {
			continue
		}
		if !first {
			e.WriteByte(',')
		}
		first = false
		e.writeKey(k.String())
		if err := e.encode(val); err != nil {
			return err
		}
	}
	e.WriteByte('}')
	return nil
}

// encodeJSMap writes maps with non-string keys as new Map([[k,v],...]) so key types survive.
func (e *encoder) encodeJSMap(v reflect.Value, keys []reflect.Value) error {
	sort.Slice(keys, func(i, j int) bool { return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j]) })
	e.WriteString("new Map([")
	for i, k := range keys {
		if i > 0 {
			e.WriteByte(',')
		}
		e.WriteByte('[')
		if err := e.encode(k); err != nil {
			return err
		}
		e.WriteByte(',')
		if err := e.encode(v.MapIndex(k)); err != nil {
			return err
		}
		e.WriteByte(']')
	}
	e.WriteString("])")
	return nil
}

func (e *encoder) encodeKeyedMapAsObject(v reflect.Value, keys []reflect.Value) error {
	sort.Slice(keys, func(i, j int) bool { return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j]) })
	e.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			e.WriteByte(',')
		}
		e.writeKey(fmt.Sprint(k))
		if err := e.encode(v.MapIndex(k)); err != nil {
			return err
		}
	}
	e.WriteByte('}')
	return nil
}

func (e *encoder) encodeStruct(v reflect.Value) error {
	e.WriteByte('{')
	first := true
	for _, f := range structFields(v.Type()) {
		fv := v.FieldByIndex(f.index)
		if f.omitEmpty && fv.IsZero() {
			continue
		}
		if e.mode == modeJSON && isUndefined(fv) {
			continue
		}
		if !first {
			e.WriteByte(',')
		}
		first = false
		e.writeKey(f.name)
		if err := e.encode(fv); err != nil {
			return err
		}
	}
	e.WriteByte('}')
	return nil
}

type field struct {
	name      string
	index     []int
	omitEmpty bool
}

// structFields lists exported fields using encoding/json tag rules for names, "-" and omitempty.
func structFields(t reflect.Type) []field {
	var fields []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = sf.Name
		}
		fields = append(fields, field{
			name:      name,
			index:     sf.Index,
			omitEmpty: strings.Contains(opts, "omitempty"),
		})
	}
	return fields
}

func isUndefined(v reflect.Value) bool {
	for v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	return v.IsValid() && v.Type() == undefinedType
}

func (e *encoder) writeUndefined() {
	if e.mode == modeJSON {
		e.WriteString("null")
		return
	}
	e.WriteString("void 0")
}

func (e *encoder) writeFloat(f float64, bits int) {
	switch {
	case math.IsNaN(f):
		e.writeNonFinite("NaN")
	case math.IsInf(f, 1):
		e.writeNonFinite("Infinity")
	case math.IsInf(f, -1):
		e.writeNonFinite("-Infinity")
	case f == 0 && math.Signbit(f):
		if e.mode == modeJSON {
			e.WriteString("0")
		} else {
			e.WriteString("-0")
		}
	default:
		e.WriteString(strconv.FormatFloat(f, 'g', -1, bits))
	}
}

func (e *encoder) writeNonFinite(lit string) {
	if e.mode == modeJSON {
		e.WriteString("null")
		return
	}
	e.WriteString(lit)
}

func (e *encoder) writeTime(t time.Time) {
	if e.mode == modeJSON {
		e.writeString(t.UTC().Format("2006-01-02T15:04:05.000Z"))
		return
	}
	fmt.Fprintf(e, "new Date(%d)", t.UnixMilli())
}

func (e *encoder) writeBigInt(b *big.Int) {
	if e.mode == modeJSON {
		e.writeString(b.String())
		return
	}
	e.WriteString(b.String())
	e.WriteByte('n')
}

func (e *encoder) writeRegexp(re *regexp.Regexp) {
	if e.mode == modeJSON {
		e.WriteString("{}")
		return
	}
	e.WriteString("new RegExp(")
	e.writeString(re.String())
	e.WriteString(`,"")`)
}

// writeString quotes s as a JSON string, which is also a valid JavaScript string literal, and
// escapes characters that could end a <script> element or break a JavaScript line.
func (e *encoder) writeString(s string) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	e.writeEscaped(strings.TrimSuffix(buf.String(), "\n"))
}

func (e *encoder) writeRawJSON(b []byte) error {
	if !json.Valid(b) {
		return errors.New("devalue: invalid JSON from marshaler")
	}
	e.writeEscaped(string(b))
	return nil
}

func (e *encoder) writeEscaped(s string) {
	for _, r := range s {
		switch r {
		case '<':
			e.WriteString(`\u003C`)
		case '>':
			e.WriteString(`\u003E`)
		case '/':
			e.WriteString(`\u002F`)
		case '\u2028':
			e.WriteString(`\u2028`)
		case '\u2029':
			e.WriteString(`\u2029`)
		default:
			e.WriteRune(r)
		}
	}
}

var identRE = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)

func (e *encoder) writeKey(k string) {
	if e.mode == modeJS && identRE.MatchString(k) {
		e.WriteString(k)
	} else {
		e.writeString(k)
	}
	e.WriteByte(':')
}
