package bundleconfig

import (
	"context"
	"os"

	"github.com/conneroisu/templpack/internal/assets"
	"github.com/conneroisu/templpack/internal/errors"
	"github.com/conneroisu/templpack/internal/logging"
)

// AliasSource provides the alias map. *resolve.AliasResolver implements it.
type AliasSource interface {
	Aliases() (map[string]string, error)
}

// Resolver turns a declared resource into a webpack module specifier.
// *resolve.PathResolver implements it.
type Resolver interface {
	Resolve(resource string) (string, error)
}

// Namer names entry points. *resolve.NameGenerator implements it.
type Namer interface {
	Name(resource string) string
}

// Builder builds snapshots and rewrites the config file when needed.
type Builder struct {
	aliases  AliasSource
	provider assets.Provider
	resolver Resolver
	namer    Namer
	dumper   *Dumper
	handler  errors.Handler
	logger   logging.Logger
}

// NewBuilder creates a snapshot builder.
func NewBuilder(
	aliases AliasSource,
	provider assets.Provider,
	resolver Resolver,
	namer Namer,
	dumper *Dumper,
	handler errors.Handler,
	logger logging.Logger,
) *Builder {
	if logger == nil {
		logger = logging.Discard()
	}

	return &Builder{
		aliases:  aliases,
		provider: provider,
		resolver: resolver,
		namer:    namer,
		dumper:   dumper,
		handler:  handler,
		logger:   logger.WithComponent("snapshot"),
	}
}

// Build collects assets, resolves them and returns the new snapshot. previous
// may be nil on the first cycle.
//
// Assets that cannot be located are reported to the error handler and left
// out of both entries and groups whatever the policy; a missing asset never
// fails the build. Build returns errors.ErrNoEntryPoints when nothing is left.
func (b *Builder) Build(ctx context.Context, previous *Snapshot) (*Snapshot, error) {
	aliases, err := b.aliases.Aliases()
	if err != nil {
		return nil, err
	}

	var token assets.Token
	if previous != nil {
		token = previous.Token
	}

	collection, err := b.provider.Collect(ctx, token)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]string, len(collection.Assets))
	groups := make(map[string][]string)
	for _, asset := range collection.Assets {
		name := b.namer.Name(asset.Resource)

		spec, err := b.resolver.Resolve(asset.Resource)
		if err != nil {
			if !errors.IsAssetNotFound(err) {
				return nil, err
			}
			_ = b.handler.Handle(ctx, err)

			continue
		}
		entries[name] = spec

		group := asset.Group
		if group == "" {
			group = DefaultGroup
		}
		groups[group] = append(groups[group], name)
	}

	if len(entries) == 0 {
		return nil, errors.ErrNoEntryPoints
	}

	snapshot := &Snapshot{
		Aliases: aliases,
		Entries: entries,
		Groups:  groups,
		Token:   collection.Token,
	}

	if previous != nil && snapshot.SameConfiguration(previous) && fileExists(previous.ConfigPath) {
		snapshot.ConfigPath = previous.ConfigPath

		return snapshot, nil
	}

	if err := b.dumper.Dump(snapshot); err != nil {
		return nil, err
	}
	snapshot.ConfigPath = b.dumper.Path()
	snapshot.Rewritten = true

	b.logger.Info(ctx, "Webpack config written",
		"path", snapshot.ConfigPath,
		"entries", len(entries),
		"groups", len(groups),
	)

	return snapshot, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)

	return err == nil
}
