// Package manifest reads the webpack manifest written by
// assets-webpack-plugin, persists it and resolves asset URLs from it.
package manifest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"sort"

	"github.com/conneroisu/templpack/internal/errors"
)

// Manifest maps an asset name to its output URLs by file type.
type Manifest map[string]map[string]string

// ErrNotFound is returned by stores that hold no manifest yet.
var ErrNotFound = stderrors.New("manifest not found")

// Store persists the manifest for the rendering side.
type Store interface {
	Save(ctx context.Context, m Manifest) error
	Load(ctx context.Context) (Manifest, error)
	Close() error
}

// Names returns the asset names in sorted order.
func (m Manifest) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// ReadFile parses the manifest at path. A missing file is reported with an
// error satisfying os.IsNotExist.
func ReadFile(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeManifestMissing, "cannot parse manifest "+path, err)
	}

	// assets-webpack-plugin may add non-string metadata; keep URLs only.
	m := make(Manifest, len(raw))
	for name, types := range raw {
		entry := make(map[string]string, len(types))
		for fileType, v := range types {
			switch url := v.(type) {
			case string:
				entry[fileType] = url
			case []any:
				if len(url) > 0 {
					if s, ok := url[0].(string); ok {
						entry[fileType] = s
					}
				}
			}
		}
		m[name] = entry
	}

	return m, nil
}

// Persist reads the manifest at path, saves it to store and removes the
// file, so a later appearance always means a new build finished. With
// failIfMissing unset a missing file is not an error and saved is false.
func Persist(ctx context.Context, path string, store Store, failIfMissing bool) (saved bool, err error) {
	m, err := ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return false, err
		}
		if !failIfMissing {
			return false, nil
		}

		return false, errors.NewBuildError(errors.ErrCodeManifestMissing,
			fmt.Sprintf("Missing manifest file in %s. Make sure assets-webpack-plugin is enabled with the same path in webpack config", path), err)
	}

	if err := store.Save(ctx, m); err != nil {
		return false, err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return true, errors.NewIOError(errors.ErrCodeManifestMissing, "cannot remove manifest file at "+path, err)
	}

	return true, nil
}
