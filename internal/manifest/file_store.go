package manifest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/templpack/internal/errors"
)

// FileStore keeps the manifest in a JSON or YAML file, chosen by extension.
type FileStore struct {
	path string
}

// NewFileStore creates a file store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(s.path))

	return ext == ".yml" || ext == ".yaml"
}

// Save writes m atomically.
func (s *FileStore) Save(_ context.Context, m Manifest) error {
	var (
		data []byte
		err  error
	)
	if s.isYAML() {
		data, err = yaml.Marshal(m)
	} else {
		data, err = json.MarshalIndent(m, "", "  ")
	}
	if err != nil {
		return errors.NewIOError(errors.ErrCodeManifestMissing, "cannot encode manifest", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotFound, "cannot create manifest directory "+dir, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotFound, "cannot write manifest store "+s.path, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)

		return errors.NewIOError(errors.ErrCodeFileNotFound, "cannot write manifest store "+s.path, err)
	}

	return nil
}

// Load reads the stored manifest. It returns ErrNotFound when the file does
// not exist.
func (s *FileStore) Load(_ context.Context) (Manifest, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}

		return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "cannot read manifest store "+s.path, err)
	}

	var m Manifest
	if s.isYAML() {
		err = yaml.Unmarshal(data, &m)
	} else {
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeManifestMissing, "cannot decode manifest store "+s.path, err)
	}
	if m == nil {
		m = Manifest{}
	}

	return m, nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}
