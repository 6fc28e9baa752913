package resolve

import (
	"path"
	"strings"
)

// ClassifierConfig configures which extensions count as entry files.
type ClassifierConfig struct {
	Enabled            bool
	EnabledExtensions  []string
	DisabledExtensions []string
	// TypeMap maps an output type to the extensions compiled into it,
	// e.g. "css" -> ["less", "scss"].
	TypeMap map[string][]string
}

// DefaultClassifierConfig returns the configuration used when nothing is set.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Enabled:            true,
		DisabledExtensions: []string{"js", "jsx", "ts", "tsx", "coffee", "es6", "ls"},
		TypeMap: map[string][]string{
			"css": {"less", "scss", "sass", "styl"},
		},
	}
}

// Classifier decides whether a file is an entry file, i.e. a file that is
// not compiled to javascript and must be extracted into its own output.
type Classifier struct {
	allow    map[string]struct{}
	deny     map[string]struct{}
	mapped   map[string]string
	denyOnly bool
}

// NewClassifier creates a classifier from cfg. A disabled configuration
// classifies nothing as an entry file.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	if !cfg.Enabled {
		cfg.EnabledExtensions = nil
		cfg.DisabledExtensions = nil
	}
	c := &Classifier{
		allow:    toSet(cfg.EnabledExtensions),
		deny:     toSet(cfg.DisabledExtensions),
		mapped:   make(map[string]string),
		denyOnly: len(cfg.EnabledExtensions) == 0,
	}
	for outType, exts := range cfg.TypeMap {
		for _, ext := range exts {
			c.mapped[strings.ToLower(ext)] = outType
		}
	}

	return c
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimPrefix(v, "."))] = struct{}{}
	}

	return set
}

// StripLoaders removes a "loader!" prefix chain from resource.
func StripLoaders(resource string) string {
	if i := strings.LastIndexByte(resource, '!'); i >= 0 {
		return resource[i+1:]
	}

	return resource
}

// Type returns the output type for resource and whether it is an entry file.
// Loader prefixes are ignored. Mapped extensions report their mapped type,
// others their own extension.
func (c *Classifier) Type(resource string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(StripLoaders(resource)), "."))
	if !c.included(ext) {
		return "", false
	}
	if outType, ok := c.mapped[ext]; ok {
		return outType, true
	}

	return ext, true
}

// IsEntryFile reports whether resource must be wrapped as an entry file.
func (c *Classifier) IsEntryFile(resource string) bool {
	_, ok := c.Type(resource)

	return ok
}

// An empty allow list falls back to the deny list; with both empty nothing
// is included.
func (c *Classifier) included(ext string) bool {
	if c.denyOnly {
		if len(c.deny) == 0 {
			return false
		}
		_, denied := c.deny[ext]

		return !denied
	}
	_, allowed := c.allow[ext]

	return allowed
}
