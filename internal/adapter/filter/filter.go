// Package filter selects records for a stream client using expr-lang expressions, for example
//
//	level <= 1 && tag startsWith "auth"
//	message contains "timeout" || filename matches "^pages/"
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/V4T54L/devrelay/internal/domain"
)

// ErrInvalidFilter is returned by Compile when the expression does not compile to a boolean.
var ErrInvalidFilter = errors.New("invalid filter expression")

// Env is the set of record fields visible to a filter expression.
type Env struct {
	Type     string `expr:"type"`
	Level    int    `expr:"level"`
	Tag      string `expr:"tag"`
	Filename string `expr:"filename"`
	Message  string `expr:"message"`
	Source   string `expr:"source"`
}

// Filter is a compiled expression. A nil *Filter matches every record.
type Filter struct {
	src     string
	program *vm.Program
}

// Compile parses src. An empty or blank src yields a nil Filter.
func Compile(src string) (*Filter, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil
	}
	program, err := expr.Compile(src, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return &Filter{src: src, program: program}, nil
}

// Match reports whether record satisfies the filter. Evaluation errors count as no match.
func (f *Filter) Match(record domain.LogRecord) bool {
	if f == nil {
		return true
	}
	out, err := expr.Run(f.program, Env{
		Type:     record.Type,
		Level:    record.Level,
		Tag:      record.Tag,
		Filename: record.Filename,
		Message:  record.Message(),
		Source:   record.Source,
	})
	if err != nil {
		return false
	}
	matched, ok := out.(bool)
	return ok && matched
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.src
}
