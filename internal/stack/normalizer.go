// Package stack turns call-site stack traces into the compact form attached to captured records.
//
// Traces use one frame per line in the layout "    at <function> (<location>)", where location
// is a file path or file:// URL optionally followed by :line and :column suffixes.
package stack

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
)

// DefaultExcludes match frames that belong to logging libraries, the Go runtime, or devrelay's
// own capture and relay path. They never point at the code that issued a log call.
var DefaultExcludes = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^.*at .*/src/(log|runtime|testing|reflect)/.*$\n?`),
	regexp.MustCompile(`(?m)^.*at .*/go\.uber\.org/(zap|multierr)@.*$\n?`),
	regexp.MustCompile(`(?m)^.*at .*/internal/(capture|stack)/[^/]*\.go.*$\n?`),
	regexp.MustCompile(`(?m)^.*at .*/internal/usecase/log_relay\.go.*$\n?`),
}

var (
	headerRE        = regexp.MustCompile(`^(Error|goroutine \d+).*\n`)
	locationRE      = regexp.MustCompile(`at .*\(([^)]+)\)`)
	lineColSuffixRE = regexp.MustCompile(`(:\d+)+$`)
)

// Normalizer strips internal frames and rewrites frame locations relative to a project root.
type Normalizer struct {
	rootDir  string
	excludes []*regexp.Regexp
}

// NewNormalizer creates a Normalizer. When no exclude patterns are given DefaultExcludes is used.
func NewNormalizer(rootDir string, excludes ...*regexp.Regexp) *Normalizer {
	if len(excludes) == 0 {
		excludes = DefaultExcludes
	}
	if rootDir != "" && !strings.HasSuffix(rootDir, "/") {
		rootDir += "/"
	}
	return &Normalizer{rootDir: rootDir, excludes: excludes}
}

// Normalize returns the origin filename and the cleaned trace for a raw trace.
// A trace without any usable frame yields two empty strings.
func (n *Normalizer) Normalize(raw string) (filename, trace string) {
	cleaned := n.Clean(raw)
	return n.Filename(cleaned), n.NormalizeFilenames(cleaned)
}

// Clean removes excluded frames and a leading error or goroutine header line.
func (n *Normalizer) Clean(raw string) string {
	out := raw
	for _, re := range n.excludes {
		out = re.ReplaceAllString(out, "")
	}
	return headerRE.ReplaceAllString(out, "")
}

// Filename extracts the location of the first frame, relative to the root directory.
func (n *Normalizer) Filename(trace string) string {
	m := locationRE.FindStringSubmatch(trace)
	if m == nil {
		return ""
	}
	path := cleanLocation(m[1])
	if n.rootDir != "" {
		path = strings.TrimPrefix(path, n.rootDir)
	}
	return path
}

// NormalizeFilenames rewrites every frame location to a bare absolute path, dropping the
// file:// scheme and line/column suffixes.
func (n *Normalizer) NormalizeFilenames(trace string) string {
	return locationRE.ReplaceAllStringFunc(trace, func(frame string) string {
		m := locationRE.FindStringSubmatch(frame)
		return strings.Replace(frame, m[1], cleanLocation(m[1]), 1)
	})
}

func cleanLocation(loc string) string {
	loc = strings.Replace(loc, "file:///", "/", 1)
	return lineColSuffixRE.ReplaceAllString(loc, "")
}

// Trace formats the calling goroutine's stack. skip is the number of frames above the caller
// of Trace to leave out; 0 starts at the function that called Trace.
func Trace(skip int) string {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		f, more := frames.Next()
		if f.File != "" {
			fn := f.Function
			if fn == "" {
				fn = "<anonymous>"
			}
			fmt.Fprintf(&b, "    at %s (%s:%d)\n", fn, f.File, f.Line)
		}
		if !more {
			break
		}
	}
	return b.String()
}
