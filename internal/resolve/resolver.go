package resolve

import (
	"net/url"
	"strings"
)

// EntryLoader is the loader that extracts an entry file into its own output.
const EntryLoader = "extract-file-loader"

// PathResolver turns a declared asset into a bundler module specifier.
type PathResolver struct {
	locator    *Locator
	classifier *Classifier
}

// NewPathResolver creates a resolver.
func NewPathResolver(locator *Locator, classifier *Classifier) *PathResolver {
	return &PathResolver{locator: locator, classifier: classifier}
}

// Resolve splits off loaders, locates the file and re-joins them. Entry
// files are wrapped as "extract-file-loader?q=<escaped specifier>!".
// A missing file is an AssetNotFound error.
func (r *PathResolver) Resolve(asset string) (string, error) {
	var parts []string

	assetPath := asset
	if i := strings.LastIndexByte(asset, '!'); i >= 0 {
		parts = append(parts, asset[:i])
		assetPath = asset[i+1:]
	}

	located, err := r.locator.Locate(assetPath)
	if err != nil {
		return "", err
	}
	parts = append(parts, located)

	resolved := strings.Join(parts, "!")
	if r.classifier.IsEntryFile(located) {
		resolved = EntryLoader + "?q=" + url.QueryEscape(resolved) + "!"
	}

	return resolved, nil
}
