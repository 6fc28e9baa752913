package manifest

import (
	"context"
	stderrors "errors"
	"fmt"
	"html/template"
	"strings"
	"sync"
)

// DefaultFileType is used when the type of an asset cannot be guessed.
const DefaultFileType = "js"

// Namer names assets the same way the config builder does.
type Namer interface {
	Name(resource string) string
}

// TypeGuesser classifies a resource. *resolve.Classifier implements it.
type TypeGuesser interface {
	Type(resource string) (string, bool)
}

// Lookup resolves template asset references to URLs from the stored
// manifest. The manifest is loaded on first use.
type Lookup struct {
	store   Store
	namer   Namer
	guesser TypeGuesser

	mu       sync.Mutex
	manifest Manifest
}

// NewLookup creates a lookup over store.
func NewLookup(store Store, namer Namer, guesser TypeGuesser) *Lookup {
	return &Lookup{store: store, namer: namer, guesser: guesser}
}

// Reload drops the cached manifest.
func (l *Lookup) Reload() {
	l.mu.Lock()
	l.manifest = nil
	l.mu.Unlock()
}

func (l *Lookup) load(ctx context.Context) (Manifest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.manifest != nil {
		return l.manifest, nil
	}

	m, err := l.store.Load(ctx)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: you must run templpack compile or templpack dev-server before templates can render webpack assets", err)
		}

		return nil, err
	}
	l.manifest = m

	return m, nil
}

func (l *Lookup) entry(ctx context.Context, name, description, hint string) (map[string]string, error) {
	m, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	entry, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("No information in manifest for %s. %s",
			description, strings.TrimSpace(hint+" Is templpack dev-server running in the background?"))
	}

	return entry, nil
}

// AssetURL returns the URL of a declared resource. With an empty fileType
// the type is guessed from the extension, falling back to js; a guessed
// type missing from the manifest is an error. An explicit fileType missing
// from the manifest yields "".
func (l *Lookup) AssetURL(ctx context.Context, resource, fileType string) (string, error) {
	name := l.namer.Name(resource)

	entry, err := l.entry(ctx, name, fmt.Sprintf("'%s' (key '%s' was not found)", resource, name), "")
	if err != nil {
		return "", err
	}

	if fileType == "" {
		fileType = DefaultFileType
		if t, ok := l.guesser.Type(resource); ok {
			fileType = t
		}
		if _, ok := entry[fileType]; !ok {
			return "", fmt.Errorf(
				"No information in the manifest for file type '%s' (key '%s', required asset '%s'). "+
					"Probably extension is unsupported or some misconfiguration issue. "+
					"If this file should compile to javascript, please extend entry_file.disabled_extensions in config",
				fileType, name, resource)
		}
	}

	return entry[fileType], nil
}

// NamedAssetURL returns the URL of a named chunk such as a group. The type
// defaults to js.
func (l *Lookup) NamedAssetURL(ctx context.Context, name, fileType string) (string, error) {
	entry, err := l.entry(ctx, name, "'"+name+"'",
		"This is probably a commons chunk - is it configured by this name in the webpack config?")
	if err != nil {
		return "", err
	}
	if fileType == "" {
		fileType = DefaultFileType
	}

	return entry[fileType], nil
}

// FuncMap returns template functions matching the declaration syntax:
//
//	{{ asset "@app/js/main.js" }}
//	{{ asset "@app/css/main.less" "css" "admin" }}
//	{{ asset_named "admin" "css" }}
//
// The group argument of asset only matters for discovery and is ignored here.
func (l *Lookup) FuncMap(ctx context.Context) template.FuncMap {
	return template.FuncMap{
		"asset": func(resource string, args ...string) (string, error) {
			if len(args) > 2 {
				return "", fmt.Errorf("asset: expected one to three arguments, got %d", len(args)+1)
			}
			var fileType string
			if len(args) > 0 {
				fileType = args[0]
			}

			return l.AssetURL(ctx, resource, fileType)
		},
		"asset_named": func(name string, args ...string) (string, error) {
			var fileType string
			if len(args) > 0 {
				fileType = args[0]
			}

			return l.NamedAssetURL(ctx, name, fileType)
		},
	}
}
