package diagnostics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/net/html"
)

func TestClean_RemovesScriptStyle(t *testing.T) {
	raw := `
<body>
    <div id="main">Hello</div>
    <script>alert("hi")</script>
    <style>.x {}</style>
</body>`

	out := Clean(raw, &DefaultCleanConfig)

	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "<style")
	assert.Contains(t, out, `<div id="main">Hello</div>`)
}

func TestClean_RemovesComments(t *testing.T) {
	out := Clean(`<body><!-- comment --><div>Text</div></body>`, nil)

	assert.NotContains(t, out, "comment")
	assert.Equal(t, "<div>Text</div>", out)
}

func TestClean_KeepsLocatorAttributes(t *testing.T) {
	raw := `<a href="/secure" class="link" id="x" data-testid="go" aria-label="Go" role="button" onclick="x()">Go</a>`

	out := Clean(raw, nil)

	for _, want := range []string{`href="/secure"`, `class="link"`, `id="x"`, `data-testid="go"`, `aria-label="Go"`, `role="button"`} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "onclick")
}

func TestClean_Fragment(t *testing.T) {
	out := Clean(`<button id="hidden" style="display:none">Hidden</button>`, nil)

	assert.Equal(t, `<button id="hidden">Hidden</button>`, out)
}

func TestClean_RemovesHeadMetaLink(t *testing.T) {
	raw := `
<html>
<head>
    <meta charset="utf-8">
    <link rel="stylesheet" href="x.css">
    <title>The Internet</title>
</head>
<body>
    <p>Hi</p>
</body>
</html>`

	out := Clean(raw, nil)

	assert.NotContains(t, out, "<head")
	assert.NotContains(t, out, "<meta")
	assert.NotContains(t, out, "The Internet")
	assert.Equal(t, "<p>Hi</p>", out)
}

func TestClean_KeepAttrOverride(t *testing.T) {
	cfg := DefaultCleanConfig
	cfg.KeepAttr = func(a html.Attribute) bool { return a.Key == "style" }

	out := Clean(`<div style="display:none">x</div>`, &cfg)

	assert.Contains(t, out, `style="display:none"`)
}

func TestClean_Truncation(t *testing.T) {
	var big strings.Builder
	big.WriteString("<body>")
	for i := 0; i < 5000; i++ {
		big.WriteString("<div>test</div>")
	}
	big.WriteString("</body>")

	out := Clean(big.String(), nil)

	assert.LessOrEqual(t, len(out), DefaultCleanConfig.MaxOutputSize+len("\n<!-- truncated -->"))
	assert.True(t, strings.HasSuffix(out, "<!-- truncated -->"))
}
