package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Parser parses one template source into a node tree.
type Parser interface {
	Parse(source []byte, name string) (*Node, error)
}

// SyntaxError is returned by a Parser when the source cannot be parsed.
type SyntaxError struct {
	Message string
	Line    int
	Source  string
	// Unknown is set when the failure is a reference to a function the
	// parser was not told about.
	Unknown bool
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s in %q at line %d", e.Message, e.Source, e.Line)
	}

	return fmt.Sprintf("%s in %q", e.Message, e.Source)
}

// UnknownReference reports whether the error names an undefined function.
func (e *SyntaxError) UnknownReference() bool {
	return e.Unknown
}

// Registry selects a Parser by file extension.
type Registry struct {
	mu       sync.RWMutex
	parsers  map[string]Parser
	fallback Parser
}

// NewRegistry returns a registry that uses fallback for unregistered extensions.
func NewRegistry(fallback Parser) *Registry {
	return &Registry{
		parsers:  make(map[string]Parser),
		fallback: fallback,
	}
}

// Register binds ext (with or without the leading dot) to p.
func (r *Registry) Register(ext string, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[normalizeExt(ext)] = p
}

// For returns the parser responsible for path.
func (r *Registry) For(path string) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.parsers[normalizeExt(filepath.Ext(path))]; ok {
		return p
	}

	return r.fallback
}

// Parse parses source with the parser registered for name.
func (r *Registry) Parse(source []byte, name string) (*Node, error) {
	p := r.For(name)
	if p == nil {
		return nil, &SyntaxError{Message: "no parser registered for file type", Source: name}
	}

	return p.Parse(source, name)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
