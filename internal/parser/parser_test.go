package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	line int
	args []string
}

func collectCalls(root *Node, name string) []call {
	var calls []call
	Walk(root, func(n *Node) bool {
		if !n.IsCall(name) {
			return true
		}
		c := call{name: n.Name, line: n.Line}
		for _, arg := range n.Args {
			if arg.IsLiteral() {
				c.args = append(c.args, arg.Value)
			} else {
				c.args = append(c.args, "<dynamic>")
			}
		}
		calls = append(calls, c)

		return false
	})

	return calls
}

func TestNodeNodes(t *testing.T) {
	arg := &Node{Kind: KindLiteral, Value: "a.js"}
	callNode := &Node{Kind: KindFunctionCall, Name: "asset", Args: []*Node{arg}}
	generic := &Node{Kind: KindGeneric, Children: []*Node{callNode}}

	assert.Equal(t, []*Node{arg}, callNode.Nodes())
	assert.Equal(t, []*Node{callNode}, generic.Nodes())
	assert.True(t, callNode.IsCall("asset"))
	assert.False(t, callNode.IsCall("other"))
	assert.True(t, arg.IsLiteral())
	assert.Equal(t, "call", KindFunctionCall.String())
}

func TestGoTemplateParser(t *testing.T) {
	source := `{{ define "head" }}<link href="{{ asset "@app/css/main.less" }}">{{ end }}
<html>
<script src="{{ asset "@app/js/main.js" "js" "admin" }}"></script>
{{ if .Debug }}
  <script src="{{ asset .Dynamic }}"></script>
{{ else }}
  {{ asset "@app/js/release.js" | printf "%s" }}
{{ end }}
{{/* asset "@app/js/commented.js" */}}
</html>`

	p := NewGoTemplateParser("", "", "asset")
	root, err := p.Parse([]byte(source), "views/index.html")
	require.NoError(t, err)

	calls := collectCalls(root, "asset")
	require.Len(t, calls, 4)

	assert.Equal(t, call{name: "asset", line: 3, args: []string{"@app/js/main.js", "js", "admin"}}, calls[0])
	assert.Equal(t, call{name: "asset", line: 5, args: []string{"<dynamic>"}}, calls[1])
	assert.Equal(t, call{name: "asset", line: 7, args: []string{"@app/js/release.js"}}, calls[2])
	// define blocks are walked after the main tree
	assert.Equal(t, call{name: "asset", line: 1, args: []string{"@app/css/main.less"}}, calls[3])
}

func TestGoTemplateParserPipelines(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []call
	}{
		{
			name:   "literal piped into call",
			source: `{{ "@app/js/main.js" | asset }}`,
			want:   []call{{name: "asset", line: 1, args: []string{"@app/js/main.js"}}},
		},
		{
			name:   "piped literal is the last argument",
			source: `{{ "vendor" | asset "@app/js/main.js" "js" }}`,
			want:   []call{{name: "asset", line: 1, args: []string{"@app/js/main.js", "js", "vendor"}}},
		},
		{
			name:   "field piped into call",
			source: "\n{{ .Path | asset }}",
			want:   []call{{name: "asset", line: 2, args: []string{"<dynamic>"}}},
		},
		{
			name:   "call piped into another call",
			source: `{{ "@app/a.js" | asset | asset }}`,
			want: []call{
				{name: "asset", line: 1, args: []string{"@app/a.js"}},
				{name: "asset", line: 1, args: []string{"<dynamic>"}},
			},
		},
	}

	p := NewGoTemplateParser("", "", "asset")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := p.Parse([]byte(tt.source), "views/index.html")
			require.NoError(t, err)
			assert.Equal(t, tt.want, collectCalls(root, "asset"))
		})
	}
}

func TestGoTemplateParserCustomDelimiters(t *testing.T) {
	p := NewGoTemplateParser("[[", "]]", "asset")
	root, err := p.Parse([]byte(`<p>{{ not a template }}</p>[[ asset "a.js" ]]`), "a.html")
	require.NoError(t, err)

	calls := collectCalls(root, "asset")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"a.js"}, calls[0].args)
}

func TestGoTemplateParserSyntaxErrors(t *testing.T) {
	tests := []struct {
		name        string
		source      string
		line        int
		unknown     bool
		msgContains string
	}{
		{
			name:        "unknown function",
			source:      "<p>\n{{ trans \"hello\" }}\n</p>",
			line:        2,
			unknown:     true,
			msgContains: `function "trans" not defined`,
		},
		{
			name:        "unclosed action",
			source:      "<p>\n\n{{ if .X }}\n</p>",
			unknown:     false,
			msgContains: "unexpected EOF",
		},
	}

	p := NewGoTemplateParser("", "", "asset")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse([]byte(tt.source), "views/broken.html")
			require.Error(t, err)

			se, ok := err.(*SyntaxError)
			require.True(t, ok, "expected *SyntaxError, got %T", err)
			if tt.line > 0 {
				assert.Equal(t, tt.line, se.Line)
			} else {
				assert.Positive(t, se.Line)
			}
			assert.Equal(t, tt.unknown, se.UnknownReference())
			assert.Contains(t, se.Message, tt.msgContains)
			assert.Equal(t, "views/broken.html", se.Source)
		})
	}
}

func TestTemplParser(t *testing.T) {
	source := `package views

templ Page(title string) {
	<link rel="stylesheet" href={ asset("@app/css/main.less") }/>
	<script src={ asset("@app/js/main.js", "js", "admin") }></script>
	<h1>{ title }</h1>
	<p>{ asset(title) }</p>
}
`

	p := NewTemplParser()
	root, err := p.Parse([]byte(source), "views/page.templ")
	require.NoError(t, err)

	calls := collectCalls(root, "asset")
	require.Len(t, calls, 3)

	assert.Equal(t, call{name: "asset", line: 4, args: []string{"@app/css/main.less"}}, calls[0])
	assert.Equal(t, call{name: "asset", line: 5, args: []string{"@app/js/main.js", "js", "admin"}}, calls[1])
	assert.Equal(t, []string{"<dynamic>"}, calls[2].args)
}

func TestTemplParserSyntaxError(t *testing.T) {
	source := `package views

templ Page() {
	<div>
}
`
	_, err := NewTemplParser().Parse([]byte(source), "views/broken.templ")
	require.Error(t, err)

	se, ok := err.(*SyntaxError)
	require.True(t, ok, "expected *SyntaxError, got %T", err)
	assert.Equal(t, "views/broken.templ", se.Source)
	assert.False(t, se.UnknownReference())
}

func TestRegistry(t *testing.T) {
	goTmpl := NewGoTemplateParser("", "", "asset")
	templ := NewTemplParser()

	r := NewRegistry(goTmpl)
	r.Register(".templ", templ)

	assert.Same(t, templ, r.For("views/page.TEMPL"))
	assert.Same(t, goTmpl, r.For("views/page.html"))
	assert.Same(t, goTmpl, r.For("views/page"))

	root, err := r.Parse([]byte(`{{ asset "a.js" }}`), "a.gohtml")
	require.NoError(t, err)
	assert.Len(t, collectCalls(root, "asset"), 1)
}
