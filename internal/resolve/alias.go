package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AliasConfig describes where aliases come from.
type AliasConfig struct {
	// Root is the project root; relative paths are resolved against it.
	Root string
	// PackageDirs each contribute "@<DirName>" and, when PathInPackage
	// exists inside them, "@<shortName>".
	PackageDirs   []string
	PathInPackage string
	// Additional aliases override package aliases. Entries whose path does
	// not exist are dropped.
	Additional map[string]string
}

// DefaultAdditionalAliases returns the aliases every project gets.
func DefaultAdditionalAliases(root string) map[string]string {
	return map[string]string{
		"app":  filepath.Join(root, "assets"),
		"root": root,
	}
}

// AliasResolver maps "@alias" prefixes to absolute directories. The table
// is computed once by Init and is read-only afterwards.
type AliasResolver struct {
	cfg     AliasConfig
	once    sync.Once
	aliases map[string]string
	err     error
}

// NewAliasResolver creates a resolver; nothing is read from disk until Init.
func NewAliasResolver(cfg AliasConfig) *AliasResolver {
	return &AliasResolver{cfg: cfg}
}

// Init builds the alias table. Later calls return the first result.
func (r *AliasResolver) Init() error {
	r.once.Do(func() {
		r.aliases, r.err = r.build()
	})

	return r.err
}

// Aliases returns a copy of the alias table keyed by "@name".
func (r *AliasResolver) Aliases() (map[string]string, error) {
	if err := r.Init(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}

	return out, nil
}

// Path returns the directory registered for alias ("@name").
func (r *AliasResolver) Path(alias string) (string, error) {
	if err := r.Init(); err != nil {
		return "", err
	}
	p, ok := r.aliases[alias]
	if !ok {
		return "", fmt.Errorf("alias not registered: %s", alias)
	}

	return p, nil
}

func (r *AliasResolver) build() (map[string]string, error) {
	root := r.cfg.Root
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving alias root: %w", err)
	}

	aliases := make(map[string]string)

	for _, dir := range r.cfg.PackageDirs {
		pkgPath, err := realPath(root, dir)
		if err != nil {
			return nil, fmt.Errorf("package directory %s: %w", dir, err)
		}
		name := filepath.Base(pkgPath)
		aliases["@"+name] = pkgPath

		if r.cfg.PathInPackage == "" {
			continue
		}
		if inner, err := realPath(pkgPath, r.cfg.PathInPackage); err == nil {
			aliases["@"+ShortName(name)] = inner
		}
	}

	additional := DefaultAdditionalAliases(root)
	for k, v := range r.cfg.Additional {
		additional[strings.TrimPrefix(k, "@")] = v
	}

	names := make([]string, 0, len(additional))
	for name := range additional {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p, err := realPath(root, additional[name])
		if err != nil {
			delete(aliases, "@"+name)

			continue
		}
		aliases["@"+name] = p
	}

	return aliases, nil
}

func realPath(base, p string) (string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(resolved); err != nil {
		return "", err
	}

	return filepath.Abs(resolved)
}

var packageSuffixes = []string{"Bundle", "Package"}

// ShortName derives the short alias of a package directory name: a trailing
// "Bundle" or "Package" is removed, separators are camelized and the first
// letter is lowered ("UserProfileBundle" and "user_profile" both become
// "userProfile").
func ShortName(name string) string {
	for _, suffix := range packageSuffixes {
		if trimmed, ok := strings.CutSuffix(name, suffix); ok && trimmed != "" {
			name = trimmed

			break
		}
	}

	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	caser := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(caser.String(part))
	}
	camel := b.String()
	if camel == "" {
		return name
	}

	first, size := utf8.DecodeRuneInString(camel)

	return string(unicode.ToLower(first)) + camel[size:]
}
