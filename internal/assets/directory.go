package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/templpack/internal/errors"
	"github.com/conneroisu/templpack/internal/logging"
)

// FileExtractor extracts declarations from one file. *Extractor implements it.
type FileExtractor interface {
	Extract(ctx context.Context, path string, previous Token) (Collection, error)
}

// DirectoryProvider scans directory trees for template files matching a set
// of basename patterns and extracts declarations from each.
type DirectoryProvider struct {
	dirs      []string
	patterns  []string
	extractor FileExtractor
	logger    logging.Logger
}

// NewDirectoryProvider creates a provider. Patterns use filepath.Match
// syntax against the file basename.
func NewDirectoryProvider(dirs, patterns []string, extractor FileExtractor, logger logging.Logger) (*DirectoryProvider, error) {
	for _, pattern := range patterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("invalid template pattern %q: %v", pattern, err))
		}
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &DirectoryProvider{
		dirs:      dirs,
		patterns:  patterns,
		extractor: extractor,
		logger:    logger.WithComponent("directory_provider"),
	}, nil
}

// Collect implements Provider. The returned token is a DirectoryToken keyed
// by real file path. If any file from the previous token is gone the whole
// previous token is discarded.
func (p *DirectoryProvider) Collect(ctx context.Context, previous Token) (Collection, error) {
	prev, err := directoryToken(previous)
	if err != nil {
		return Collection{}, err
	}

	files, err := p.Files()
	if err != nil {
		return Collection{}, err
	}

	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[f] = struct{}{}
	}
	for path := range prev {
		if _, ok := present[path]; !ok {
			p.logger.Debug(ctx, "Template removed, discarding cache", "file", path)
			prev = nil

			break
		}
	}

	token := make(DirectoryToken, len(files))
	var assets []Declaration
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return Collection{}, err
		}

		var previousFile Token
		if ft, ok := prev[path]; ok && ft != nil {
			previousFile = ft
		}

		c, err := p.extractor.Extract(ctx, path, previousFile)
		if err != nil {
			if errors.IsInvalidResource(err) && !exists(path) {
				p.logger.Debug(ctx, "Template vanished during scan", "file", path)

				continue
			}

			return Collection{}, err
		}

		assets = append(assets, c.Assets...)
		if ft, ok := c.Token.(*FileToken); ok && ft != nil {
			token[path] = ft
		}
	}

	return Collection{Assets: assets, Token: token}, nil
}

// Files lists the matching template files, resolved to real paths and sorted
// by name within each directory. Missing directories are skipped. Symbolic links are
// followed, each real directory is visited at most once.
func (p *DirectoryProvider) Files() ([]string, error) {
	var files []string
	seen := make(map[string]struct{})
	visited := make(map[string]struct{})

	for _, dir := range p.dirs {
		info, err := os.Stat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "cannot read template directory "+dir, err)
		}
		if !info.IsDir() {
			continue
		}

		err = p.walk(dir, visited, func(path string) {
			if _, ok := seen[path]; ok {
				return
			}
			seen[path] = struct{}{}
			files = append(files, path)
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

func (p *DirectoryProvider) walk(dir string, visited map[string]struct{}, add func(string)) error {
	resolved, err := realPath(dir)
	if err != nil {
		return nil
	}
	if _, ok := visited[resolved]; ok {
		return nil
	}
	visited[resolved] = struct{}{}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotFound, "cannot read template directory "+dir, err)
	}

	for _, entry := range entries {
		full := filepath.Join(resolved, entry.Name())
		info, err := os.Stat(full)
		if err != nil {
			// broken symlink
			continue
		}
		if info.IsDir() {
			if err := p.walk(full, visited, add); err != nil {
				return err
			}

			continue
		}
		if !info.Mode().IsRegular() || !p.matches(entry.Name()) {
			continue
		}
		if path, err := realPath(full); err == nil {
			add(path)
		}
	}

	return nil
}

func (p *DirectoryProvider) matches(name string) bool {
	for _, pattern := range p.patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}

	return false
}

func realPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	return filepath.EvalSymlinks(abs)
}

func exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

func directoryToken(previous Token) (DirectoryToken, error) {
	if previous == nil {
		return nil, nil
	}

	t, ok := previous.(DirectoryToken)
	if !ok {
		return nil, errors.NewInvalidContextError(fmt.Sprintf("expected directory token, got %T", previous))
	}

	return t, nil
}
