// Package render is the minimal HTML rendering pipeline devrelay plugs into. A page render
// assembles an HTMLContext, lets registered hooks edit it, and writes the document.
package render

import (
	"context"
	"io"
	"strings"
	"sync"
)

// HTMLContext holds the parts of a document. Hooks may edit every list; entries are raw HTML.
type HTMLContext struct {
	Path        string
	HTMLAttrs   []string
	Head        []string
	BodyAttrs   []string
	BodyPrepend []string
	Body        []string
	BodyAppend  []string
}

// HTMLHook is called once per render, after the page body is produced and before the
// document is written.
type HTMLHook func(ctx context.Context, html *HTMLContext)

// Hooks is the registry of render hooks. Hooks run in registration order.
type Hooks struct {
	mu   sync.RWMutex
	html []HTMLHook
}

// NewHooks creates an empty hook registry.
func NewHooks() *Hooks {
	return &Hooks{}
}

// OnHTML registers fn for every render.
func (h *Hooks) OnHTML(fn HTMLHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.html = append(h.html, fn)
}

// CallHTML runs all HTML hooks against html.
func (h *Hooks) CallHTML(ctx context.Context, html *HTMLContext) {
	h.mu.RLock()
	hooks := h.html
	h.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, html)
	}
}

// Page is the output of a page handler.
type Page struct {
	Title string
	Head  []string
	Body  string
}

// Renderer turns pages into documents.
type Renderer struct {
	hooks *Hooks
}

// NewRenderer creates a Renderer that runs hooks on each render.
func NewRenderer(hooks *Hooks) *Renderer {
	return &Renderer{hooks: hooks}
}

// Render runs the HTML hooks for page and writes the resulting document to w.
func (r *Renderer) Render(ctx context.Context, w io.Writer, path string, page Page) error {
	html := &HTMLContext{
		Path:      path,
		HTMLAttrs: []string{`lang="en"`},
		Head:      append([]string{`<meta charset="utf-8">`, "<title>" + escapeText(page.Title) + "</title>"}, page.Head...),
		Body:      []string{page.Body},
	}
	r.hooks.CallHTML(ctx, html)

	_, err := io.WriteString(w, Document(html))
	return err
}

// Document joins the parts of html into a complete HTML document.
func Document(html *HTMLContext) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html")
	writeAttrs(&b, html.HTMLAttrs)
	b.WriteString("><head>")
	b.WriteString(strings.Join(html.Head, "\n"))
	b.WriteString("</head><body")
	writeAttrs(&b, html.BodyAttrs)
	b.WriteString(">")
	b.WriteString(strings.Join(html.BodyPrepend, "\n"))
	b.WriteString(strings.Join(html.Body, "\n"))
	b.WriteString(strings.Join(html.BodyAppend, "\n"))
	b.WriteString("</body></html>")
	return b.String()
}

func writeAttrs(b *strings.Builder, attrs []string) {
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(a)
	}
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
