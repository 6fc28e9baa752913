package bundleconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/templpack/internal/errors"
)

// DumperConfig configures the generated webpack config file.
type DumperConfig struct {
	// Path is where the wrapper is written.
	Path string
	// IncludeConfigPath is the user config the wrapper requires.
	IncludeConfigPath string
	ManifestPath      string
	Environment       string
	Parameters        map[string]any
}

// Dumper writes the webpack config wrapper. The wrapper requires the user
// config, which must export a function, and calls it with the snapshot.
type Dumper struct {
	cfg DumperConfig
}

// NewDumper creates a dumper.
func NewDumper(cfg DumperConfig) *Dumper {
	return &Dumper{cfg: cfg}
}

// Path returns the location of the generated file.
func (d *Dumper) Path() string {
	return d.cfg.Path
}

type payload struct {
	Entry        map[string]string   `json:"entry"`
	Groups       map[string][]string `json:"groups"`
	Alias        map[string]string   `json:"alias"`
	ManifestPath string              `json:"manifestPath"`
	Environment  string              `json:"environment"`
	Parameters   map[string]any      `json:"parameters"`
}

// Render returns the file contents for s.
func (d *Dumper) Render(s *Snapshot) ([]byte, error) {
	include, err := encode(d.cfg.IncludeConfigPath)
	if err != nil {
		return nil, err
	}

	body, err := encode(payload{
		Entry:        nonNil(s.Entries),
		Groups:       nonNil(s.Groups),
		Alias:        nonNil(s.Aliases),
		ManifestPath: d.cfg.ManifestPath,
		Environment:  d.cfg.Environment,
		Parameters:   nonNil(d.cfg.Parameters),
	})
	if err != nil {
		return nil, err
	}

	return fmt.Appendf(nil, "module.exports = require(%s)(%s);\n", include, body), nil
}

// Dump renders s and replaces the config file atomically.
func (d *Dumper) Dump(s *Snapshot) error {
	content, err := d.Render(s)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeConfigInvalid, "cannot encode webpack config", err)
	}

	dir := filepath.Dir(d.cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotFound, "cannot create config directory "+dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".webpack-config-*")
	if err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotFound, "cannot write webpack config", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()

		return errors.NewIOError(errors.ErrCodeFileNotFound, "cannot write webpack config", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotFound, "cannot write webpack config", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotFound, "cannot write webpack config", err)
	}

	if err := os.Rename(tmp.Name(), d.cfg.Path); err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotFound, "cannot write webpack config "+d.cfg.Path, err)
	}

	return nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func nonNil[M ~map[K]V, K comparable, V any](m M) M {
	if m == nil {
		return M{}
	}

	return m
}
