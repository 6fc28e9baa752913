package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/templpack/internal/errors"
	"github.com/conneroisu/templpack/internal/parser"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestExtractor(policy errors.Policy) *Extractor {
	return NewExtractor(
		parser.NewGoTemplateParser("", "", DefaultFunction),
		"",
		errors.NewErrorHandler(policy, nil),
		nil,
	)
}

func TestExtract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	writeFile(t, path, `<link href="{{ asset "@app/css/main.less" }}">
<script src="{{ asset "@app/js/main.js" "js" "admin" }}"></script>
<script src="{{ asset "@app/js/vendor.js" "js" "" }}"></script>
<script src="{{ "@app/js/piped.js" | asset }}"></script>`)

	c, err := newTestExtractor(errors.PolicyStrict).Extract(context.Background(), path, nil)
	require.NoError(t, err)

	assert.Equal(t, []Declaration{
		{Resource: "@app/css/main.less"},
		{Resource: "@app/js/main.js", Group: "admin"},
		{Resource: "@app/js/vendor.js"},
		{Resource: "@app/js/piped.js"},
	}, c.Assets)

	token, ok := c.Token.(*FileToken)
	require.True(t, ok)
	assert.Positive(t, token.ModifiedAt)
	assert.Equal(t, c.Assets, token.Assets)
}

func TestExtractReusesUnchangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	writeFile(t, path, `{{ asset "a.js" }}`)
	require.NoError(t, os.Chtimes(path, stamp, stamp))

	e := newTestExtractor(errors.PolicyStrict)
	first, err := e.Extract(context.Background(), path, nil)
	require.NoError(t, err)

	// Same mtime: the new content must not be read.
	writeFile(t, path, `{{ asset "b.js" }}`)
	require.NoError(t, os.Chtimes(path, stamp, stamp))

	second, err := e.Extract(context.Background(), path, first.Token)
	require.NoError(t, err)
	assert.Equal(t, []Declaration{{Resource: "a.js"}}, second.Assets)
	assert.Same(t, first.Token, second.Token)

	later := stamp.Add(time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	third, err := e.Extract(context.Background(), path, second.Token)
	require.NoError(t, err)
	assert.Equal(t, []Declaration{{Resource: "b.js"}}, third.Assets)
}

func TestExtractDeclarationErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		message string
	}{
		{
			name:    "dynamic resource",
			source:  "<p>\n{{ asset .Path }}</p>",
			message: "Argument passed to function asset must be text node to parse without context",
		},
		{
			name:    "dynamic group",
			source:  `{{ asset "a.js" "js" .Group }}`,
			message: "must be text node",
		},
		{
			name:    "no arguments",
			source:  `{{ asset }}`,
			message: "Expected one to three arguments passed to function asset",
		},
		{
			name:    "too many arguments",
			source:  `{{ asset "a.js" "js" "g" "extra" }}`,
			message: "Expected one to three arguments passed to function asset",
		},
		{
			name:    "syntax error",
			source:  `{{ if .X }}`,
			message: "template syntax error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "broken.html")
			writeFile(t, path, tt.source)

			_, err := newTestExtractor(errors.PolicyStrict).Extract(context.Background(), path, nil)
			require.Error(t, err)
			assert.True(t, errors.IsResourceParsing(err))
			assert.Contains(t, err.Error(), tt.message)

			c, err := newTestExtractor(errors.PolicySuppress).Extract(context.Background(), path, nil)
			require.NoError(t, err)
			assert.Empty(t, c.Assets)
			require.IsType(t, &FileToken{}, c.Token)
		})
	}
}

func TestExtractLocationHint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	writeFile(t, path, "<p>\n\n{{ asset .Path }}</p>")

	_, err := newTestExtractor(errors.PolicyStrict).Extract(context.Background(), path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "File "+path+", line 3")
}

func TestExtractIgnoreUnknowns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	writeFile(t, path, `{{ trans "title" }}{{ asset "a.js" }}`)

	c, err := newTestExtractor(errors.PolicyIgnoreUnknowns).Extract(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Empty(t, c.Assets)

	path = filepath.Join(t.TempDir(), "other.html")
	writeFile(t, path, `{{ asset .X }}`)
	_, err = newTestExtractor(errors.PolicyIgnoreUnknowns).Extract(context.Background(), path, nil)
	assert.Error(t, err)
}

func TestExtractInvalidInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	writeFile(t, path, `{{ asset "a.js" }}`)
	e := newTestExtractor(errors.PolicyStrict)

	_, err := e.Extract(context.Background(), filepath.Join(dir, "missing.html"), nil)
	assert.True(t, errors.IsInvalidResource(err))

	_, err = e.Extract(context.Background(), dir, nil)
	assert.True(t, errors.IsInvalidResource(err))

	_, err = e.Extract(context.Background(), path, DirectoryToken{})
	assert.True(t, errors.IsInvalidContext(err))

	_, err = e.Extract(context.Background(), path, &FileToken{ModifiedAt: 0})
	assert.True(t, errors.IsInvalidContext(err))

	var none *FileToken
	c, err := e.Extract(context.Background(), path, none)
	require.NoError(t, err)
	assert.Len(t, c.Assets, 1)
}

func TestExtractTempl(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.templ")
	writeFile(t, path, `package views

templ Page() {
	<script src={ asset("@app/js/page.ts", "js", "public") }></script>
}
`)

	e := NewExtractor(parser.NewTemplParser(), "asset", errors.NewErrorHandler(errors.PolicyStrict, nil), nil)
	c, err := e.Extract(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, []Declaration{{Resource: "@app/js/page.ts", Group: "public"}}, c.Assets)
}

// countingExtractor records which files were extracted without a cache token.
type countingExtractor struct {
	inner FileExtractor
	fresh []string
}

func (c *countingExtractor) Extract(ctx context.Context, path string, previous Token) (Collection, error) {
	if previous == nil {
		c.fresh = append(c.fresh, filepath.Base(path))
	}

	return c.inner.Extract(ctx, path, previous)
}

func TestDirectoryProvider(t *testing.T) {
	root := t.TempDir()
	views := filepath.Join(root, "views")
	admin := filepath.Join(root, "admin")

	writeFile(t, filepath.Join(views, "b.html"), `{{ asset "b.js" }}`)
	writeFile(t, filepath.Join(views, "a.html"), `{{ asset "a.js" }}`)
	writeFile(t, filepath.Join(views, "nested", "c.gohtml"), `{{ asset "c.js" }}`)
	writeFile(t, filepath.Join(views, "notes.txt"), `{{ asset "ignored.js" }}`)
	writeFile(t, filepath.Join(admin, "d.html"), `{{ asset "d.js" "js" "admin" }}`)

	counter := &countingExtractor{inner: newTestExtractor(errors.PolicyStrict)}
	p, err := NewDirectoryProvider(
		[]string{views, filepath.Join(root, "missing"), admin},
		[]string{"*.html", "*.gohtml"},
		counter,
		nil,
	)
	require.NoError(t, err)

	first, err := p.Collect(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []Declaration{
		{Resource: "a.js"},
		{Resource: "b.js"},
		{Resource: "c.js"},
		{Resource: "d.js", Group: "admin"},
	}, first.Assets)
	assert.Equal(t, []string{"a.html", "b.html", "c.gohtml", "d.html"}, counter.fresh)

	token, ok := first.Token.(DirectoryToken)
	require.True(t, ok)
	assert.Len(t, token, 4)

	counter.fresh = nil
	second, err := p.Collect(context.Background(), first.Token)
	require.NoError(t, err)
	assert.Equal(t, first.Assets, second.Assets)
	assert.Empty(t, counter.fresh)

	// A new file only costs one extraction.
	writeFile(t, filepath.Join(views, "e.html"), `{{ asset "e.js" }}`)
	third, err := p.Collect(context.Background(), second.Token)
	require.NoError(t, err)
	assert.Len(t, third.Assets, 5)
	assert.Equal(t, []string{"e.html"}, counter.fresh)

	// Removing a file invalidates every cached entry.
	counter.fresh = nil
	require.NoError(t, os.Remove(filepath.Join(views, "b.html")))
	fourth, err := p.Collect(context.Background(), third.Token)
	require.NoError(t, err)
	assert.Len(t, fourth.Assets, 4)
	assert.Equal(t, []string{"a.html", "e.html", "c.gohtml", "d.html"}, counter.fresh)
}

func TestDirectoryProviderSymlinks(t *testing.T) {
	root := t.TempDir()
	views := filepath.Join(root, "views")
	writeFile(t, filepath.Join(views, "a.html"), `{{ asset "a.js" }}`)

	require.NoError(t, os.Symlink(views, filepath.Join(views, "loop")))
	require.NoError(t, os.Symlink(filepath.Join(views, "a.html"), filepath.Join(views, "alias.html")))
	require.NoError(t, os.Symlink(filepath.Join(root, "nowhere"), filepath.Join(views, "broken.html")))

	p, err := NewDirectoryProvider([]string{views, views}, []string{"*.html"}, newTestExtractor(errors.PolicyStrict), nil)
	require.NoError(t, err)

	files, err := p.Files()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.html", filepath.Base(files[0]))
}

func TestDirectoryProviderErrors(t *testing.T) {
	_, err := NewDirectoryProvider([]string{"."}, []string{"[a-"}, nil, nil)
	assert.Error(t, err)

	p, err := NewDirectoryProvider([]string{t.TempDir()}, []string{"*.html"}, newTestExtractor(errors.PolicyStrict), nil)
	require.NoError(t, err)

	_, err = p.Collect(context.Background(), CollectorToken{})
	assert.True(t, errors.IsInvalidContext(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.html"), `{{ asset "a.js" }}`)
	p, err = NewDirectoryProvider([]string{dir}, []string{"*.html"}, newTestExtractor(errors.PolicyStrict), nil)
	require.NoError(t, err)
	_, err = p.Collect(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

// recordingProvider remembers the token it was handed.
type recordingProvider struct {
	assets   []Declaration
	received []Token
}

func (r *recordingProvider) Collect(_ context.Context, previous Token) (Collection, error) {
	r.received = append(r.received, previous)

	return Collection{Assets: r.assets, Token: len(r.received)}, nil
}

func TestCollector(t *testing.T) {
	first := NewStaticProvider([]Declaration{{Resource: "a.js"}, {Resource: "b.js", Group: "admin"}})
	second := NewStaticProvider([]Declaration{{Resource: "c.js"}, {Resource: "a.js"}, {Resource: "b.js", Group: "admin"}})

	c := NewCollector([]Provider{first, second}, errors.NewErrorHandler(errors.PolicyStrict, nil), nil)
	result, err := c.Collect(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []Declaration{
		{Resource: "a.js"},
		{Resource: "b.js", Group: "admin"},
		{Resource: "c.js"},
	}, result.Assets)
	assert.Equal(t, CollectorToken{0: nil, 1: nil}, result.Token)
}

func TestCollectorGroupConflict(t *testing.T) {
	providers := []Provider{
		NewStaticProvider([]Declaration{{Resource: "a.js", Group: "public"}}),
		NewStaticProvider([]Declaration{{Resource: "a.js", Group: "admin"}}),
	}

	_, err := NewCollector(providers, errors.NewErrorHandler(errors.PolicyStrict, nil), nil).
		Collect(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Different groups (public and admin)")

	collector := errors.NewErrorCollector()
	handler := errors.NewErrorHandler(errors.PolicySuppress, nil).WithCollector(collector)
	result, err := NewCollector(providers, handler, nil).Collect(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []Declaration{{Resource: "a.js", Group: "public"}}, result.Assets)
	assert.Len(t, collector.Reports(), 1)
}

func TestCollectorTokens(t *testing.T) {
	a := &recordingProvider{assets: []Declaration{{Resource: "a.js"}}}
	b := &recordingProvider{assets: []Declaration{{Resource: "b.js"}}}
	c := NewCollector([]Provider{a, b}, errors.NewErrorHandler(errors.PolicyStrict, nil), nil)

	first, err := c.Collect(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, CollectorToken{0: 1, 1: 1}, first.Token)

	_, err = c.Collect(context.Background(), first.Token)
	require.NoError(t, err)
	assert.Equal(t, []Token{nil, 1}, a.received)
	assert.Equal(t, []Token{nil, 1}, b.received)

	// An index without a provider drops the whole previous token.
	_, err = c.Collect(context.Background(), CollectorToken{0: 7, 1: 7, 2: 7})
	require.NoError(t, err)
	assert.Nil(t, a.received[2])
	assert.Nil(t, b.received[2])

	_, err = c.Collect(context.Background(), DirectoryToken{})
	assert.True(t, errors.IsInvalidContext(err))
}

func TestStaticProviderCopies(t *testing.T) {
	p := NewStaticProvider([]Declaration{{Resource: "a.js"}})
	c, err := p.Collect(context.Background(), nil)
	require.NoError(t, err)
	c.Assets[0].Resource = "changed"

	c, err = p.Collect(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "a.js", c.Assets[0].Resource)
	assert.Nil(t, c.Token)
}
