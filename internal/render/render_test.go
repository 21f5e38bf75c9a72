package render

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_RunsHooksInOrder(t *testing.T) {
	hooks := NewHooks()
	var calls []string
	hooks.OnHTML(func(_ context.Context, html *HTMLContext) {
		calls = append(calls, "first:"+html.Path)
		html.BodyAppend = append(html.BodyAppend, "<script>b()</script>")
	})
	hooks.OnHTML(func(_ context.Context, html *HTMLContext) {
		calls = append(calls, "second")
		html.BodyAppend = append([]string{"<script>a()</script>"}, html.BodyAppend...)
	})

	var buf bytes.Buffer
	err := NewRenderer(hooks).Render(context.Background(), &buf, "/about", Page{Title: "A & B", Body: "<main>hi</main>"})
	require.NoError(t, err)

	assert.Equal(t, []string{"first:/about", "second"}, calls)
	assert.Equal(t,
		`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+"\n"+`<title>A &amp; B</title></head>`+
			`<body><main>hi</main><script>a()</script>`+"\n"+`<script>b()</script></body></html>`,
		buf.String())
}
