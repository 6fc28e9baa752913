// Package assets discovers asset declarations in template files and merges
// them across providers, reusing per-file results while files are unchanged.
package assets

import "context"

// Declaration is one asset referenced from a template. An empty Group means
// the asset belongs to no group.
type Declaration struct {
	Resource string `json:"resource" yaml:"resource"`
	Group    string `json:"group,omitempty" yaml:"group,omitempty"`
}

// Token is the opaque state a provider hands back on the next cycle. Each
// provider only accepts the token type it produced: *FileToken,
// DirectoryToken, CollectorToken or nil.
type Token any

// FileToken caches the declarations of one template file. ModifiedAt is the
// file modification time in nanoseconds and is always positive.
type FileToken struct {
	ModifiedAt int64         `json:"modified_at"`
	Assets     []Declaration `json:"assets"`
}

// DirectoryToken maps real file paths to their cache tokens.
type DirectoryToken map[string]*FileToken

// CollectorToken maps provider indices to the token each provider returned.
type CollectorToken map[int]Token

// Collection is the result of a provider run.
type Collection struct {
	Assets []Declaration
	Token  Token
}

// Provider yields declarations, given the token from its previous run.
type Provider interface {
	Collect(ctx context.Context, previous Token) (Collection, error)
}

// StaticProvider returns a fixed list of declarations.
type StaticProvider struct {
	assets []Declaration
}

// NewStaticProvider creates a provider for assets configured outside templates.
func NewStaticProvider(assets []Declaration) *StaticProvider {
	return &StaticProvider{assets: assets}
}

// Collect implements Provider. The token is always nil.
func (p *StaticProvider) Collect(_ context.Context, _ Token) (Collection, error) {
	out := make([]Declaration, len(p.assets))
	copy(out, p.assets)

	return Collection{Assets: out}, nil
}
