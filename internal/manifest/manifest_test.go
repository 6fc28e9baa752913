package manifest

import (
	"bytes"
	"context"
	"html/template"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/templpack/internal/errors"
	"github.com/conneroisu/templpack/internal/resolve"
)

var sample = Manifest{
	"main.aa422760":  {"js": "/build/main.aa422760.js"},
	"theme.1b2c3d4e": {"css": "/build/theme.1b2c3d4e.css", "js": "/build/theme.1b2c3d4e.js"},
	"admin":          {"js": "/build/admin.js", "css": "/build/admin.css"},
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	writeFile(t, path, `{
  "main": {"js": "/build/main.js", "integrity": 3},
  "split": {"js": ["/build/split.1.js", "/build/split.2.js"]}
}`)

	m, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Manifest{
		"main":  {"js": "/build/main.js"},
		"split": {"js": "/build/split.1.js"},
	}, m)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, os.IsNotExist(err))

	writeFile(t, path, `not json`)
	_, err = ReadFile(path)
	assert.Error(t, err)
}

func TestPersist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "webpack_manifest.json")
	store := NewFileStore(filepath.Join(dir, "store", "manifest.json"))

	saved, err := Persist(context.Background(), path, store, false)
	require.NoError(t, err)
	assert.False(t, saved)

	_, err = Persist(context.Background(), path, store, true)
	require.Error(t, err)
	assert.True(t, errors.IsBuildError(err))
	assert.Contains(t, err.Error(), "Missing manifest file in "+path)

	writeFile(t, path, `{"main": {"js": "/build/main.js"}}`)
	saved, err = Persist(context.Background(), path, store, true)
	require.NoError(t, err)
	assert.True(t, saved)
	assert.NoFileExists(t, path)

	m, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/build/main.js", m["main"]["js"])
}

func TestFileStore(t *testing.T) {
	for _, name := range []string{"manifest.json", "manifest.yaml"} {
		t.Run(name, func(t *testing.T) {
			store := NewFileStore(filepath.Join(t.TempDir(), name))

			_, err := store.Load(context.Background())
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Save(context.Background(), sample))
			loaded, err := store.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, sample, loaded)
			assert.NoError(t, store.Close())
		})
	}
}

func TestFileStoreYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yml")
	require.NoError(t, NewFileStore(path).Save(context.Background(), Manifest{"main": {"js": "/main.js"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "main:\n    js: /main.js\n", string(data))
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "manifest.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(context.Background(), sample))
	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sample, loaded)

	// Saving replaces everything previously stored.
	next := Manifest{"main.aa422760": {"js": "/build/main.ffffffff.js"}}
	require.NoError(t, store.Save(context.Background(), next))
	loaded, err = store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, next, loaded)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEMPLPACK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEMPLPACK_TEST_POSTGRES_DSN not set")
	}

	store, err := NewPostgresStore(dsn)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(context.Background(), sample))
	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sample, loaded)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     StoreConfig
		wantErr bool
		check   func(t *testing.T, s Store)
	}{
		{
			name: "default json",
			cfg:  StoreConfig{Path: filepath.Join(dir, "m.json")},
			check: func(t *testing.T, s Store) {
				require.IsType(t, &FileStore{}, s)
				assert.Equal(t, filepath.Join(dir, "m.json"), s.(*FileStore).Path())
			},
		},
		{
			name: "yaml switches extension",
			cfg:  StoreConfig{Kind: KindYAML, Path: filepath.Join(dir, "m.json")},
			check: func(t *testing.T, s Store) {
				assert.Equal(t, filepath.Join(dir, "m.yaml"), s.(*FileStore).Path())
			},
		},
		{
			name: "sqlite",
			cfg:  StoreConfig{Kind: KindSQLite, Path: filepath.Join(dir, "m.db")},
			check: func(t *testing.T, s Store) {
				assert.IsType(t, &SQLStore{}, s)
			},
		},
		{
			name:    "s3 without endpoint",
			cfg:     StoreConfig{Kind: KindS3},
			wantErr: true,
		},
		{
			name: "s3",
			cfg: StoreConfig{Kind: KindS3, S3: ObjectStoreConfig{
				Endpoint: "localhost:9000", AccessKey: "key", SecretKey: "secret", Bucket: "assets",
			}},
			check: func(t *testing.T, s Store) {
				require.IsType(t, &ObjectStore{}, s)
				assert.Equal(t, "webpack_manifest.json", s.(*ObjectStore).key)
			},
		},
		{
			name:    "unknown",
			cfg:     StoreConfig{Kind: "redis"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)

				return
			}
			require.NoError(t, err)
			defer s.Close()
			tt.check(t, s)
		})
	}
}

func newLookup(t *testing.T, m Manifest) *Lookup {
	t.Helper()
	store := NewFileStore(filepath.Join(t.TempDir(), "manifest.json"))
	if m != nil {
		require.NoError(t, store.Save(context.Background(), m))
	}
	namer, err := resolve.NewNameGenerator(16)
	require.NoError(t, err)

	return NewLookup(store, namer, resolve.NewClassifier(resolve.DefaultClassifierConfig()))
}

func TestLookupAssetURL(t *testing.T) {
	main := resolve.GenerateName("@app/js/main.js")
	theme := resolve.GenerateName("@app/css/theme.less")
	l := newLookup(t, Manifest{
		main:    {"js": "/build/main.js"},
		theme:   {"css": "/build/theme.css", "js": "/build/theme.js"},
		"admin": {"js": "/build/admin.js"},
	})
	ctx := context.Background()

	url, err := l.AssetURL(ctx, "@app/js/main.js", "")
	require.NoError(t, err)
	assert.Equal(t, "/build/main.js", url)

	url, err = l.AssetURL(ctx, "@app/css/theme.less", "")
	require.NoError(t, err)
	assert.Equal(t, "/build/theme.css", url)

	url, err = l.AssetURL(ctx, "@app/css/theme.less", "js")
	require.NoError(t, err)
	assert.Equal(t, "/build/theme.js", url)

	url, err = l.AssetURL(ctx, "@app/js/main.js", "css")
	require.NoError(t, err)
	assert.Empty(t, url)

	_, err = l.AssetURL(ctx, "@app/js/other.js", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No information in manifest for '@app/js/other.js'")

	url, err = l.NamedAssetURL(ctx, "admin", "")
	require.NoError(t, err)
	assert.Equal(t, "/build/admin.js", url)

	_, err = l.NamedAssetURL(ctx, "vendor", "")
	assert.Contains(t, err.Error(), "commons chunk")
}

func TestLookupGuessedTypeMissing(t *testing.T) {
	name := resolve.GenerateName("@app/css/theme.less")
	l := newLookup(t, Manifest{name: {"js": "/build/theme.js"}})

	_, err := l.AssetURL(context.Background(), "@app/css/theme.less", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file type 'css'")
}

func TestLookupWithoutManifest(t *testing.T) {
	l := newLookup(t, nil)

	_, err := l.AssetURL(context.Background(), "@app/js/main.js", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupReload(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "manifest.json"))
	require.NoError(t, store.Save(context.Background(), Manifest{"admin": {"js": "/v1.js"}}))
	namer, err := resolve.NewNameGenerator(4)
	require.NoError(t, err)
	l := NewLookup(store, namer, resolve.NewClassifier(resolve.DefaultClassifierConfig()))

	url, err := l.NamedAssetURL(context.Background(), "admin", "js")
	require.NoError(t, err)
	assert.Equal(t, "/v1.js", url)

	require.NoError(t, store.Save(context.Background(), Manifest{"admin": {"js": "/v2.js"}}))
	url, _ = l.NamedAssetURL(context.Background(), "admin", "js")
	assert.Equal(t, "/v1.js", url)

	l.Reload()
	url, _ = l.NamedAssetURL(context.Background(), "admin", "js")
	assert.Equal(t, "/v2.js", url)
}

func TestFuncMap(t *testing.T) {
	main := resolve.GenerateName("@app/js/main.js")
	l := newLookup(t, Manifest{
		main:    {"js": "/build/main.js"},
		"admin": {"css": "/build/admin.css"},
	})

	tmpl := template.Must(template.New("page").Funcs(l.FuncMap(context.Background())).Parse(
		`<script src="{{ asset "@app/js/main.js" "js" "admin" }}"></script><link href="{{ asset_named "admin" "css" }}">`,
	))

	var buf bytes.Buffer
	require.NoError(t, tmpl.Execute(&buf, nil))
	assert.Equal(t, `<script src="/build/main.js"></script><link href="/build/admin.css">`, buf.String())

	tmpl = template.Must(template.New("broken").Funcs(l.FuncMap(context.Background())).Parse(
		`{{ asset "@app/js/missing.js" }}`,
	))
	assert.Error(t, tmpl.Execute(&bytes.Buffer{}, nil))
}

func TestQuery(t *testing.T) {
	results, err := Query(sample, "$.*.css")
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"/build/theme.1b2c3d4e.css", "/build/admin.css"}, results)

	results, err = Query(sample, "$.admin.js")
	require.NoError(t, err)
	assert.Equal(t, []any{"/build/admin.js"}, results)
}
