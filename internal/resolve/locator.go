package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/templpack/internal/errors"
)

// Locator turns an asset reference into an existing filesystem path.
type Locator struct {
	aliases *AliasResolver
	baseDir string
}

// NewLocator creates a locator. Relative references that do not start with
// an alias are resolved against baseDir.
func NewLocator(aliases *AliasResolver, baseDir string) *Locator {
	return &Locator{aliases: aliases, baseDir: baseDir}
}

// Locate resolves an "@alias/..." prefix and checks that the file exists.
func (l *Locator) Locate(asset string) (string, error) {
	located := asset
	if strings.HasPrefix(asset, "@") {
		var err error
		located, err = l.resolveAlias(asset)
		if err != nil {
			return "", err
		}
	} else if l.baseDir != "" && !filepath.IsAbs(asset) {
		located = filepath.Join(l.baseDir, asset)
	}

	if _, err := os.Stat(located); err != nil {
		return "", errors.NewAssetNotFoundError(asset,
			fmt.Errorf("resolved to %s: %w", located, err)).WithContext("path", located)
	}

	return located, nil
}

func (l *Locator) resolveAlias(asset string) (string, error) {
	pos := strings.IndexByte(asset, '/')
	if pos < 0 {
		pos = len(asset)
	}
	alias := asset[:pos]

	aliasPath, err := l.aliases.Path(alias)
	if err != nil {
		return "", errors.NewAssetNotFoundError(asset,
			fmt.Errorf("invalid alias %s: %w", alias, err)).WithContext("alias", alias)
	}

	return aliasPath + asset[pos:], nil
}
