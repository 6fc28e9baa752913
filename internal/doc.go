// Package internal contains the implementation packages of the templpack CLI.
//
// # Package Organization
//
//   - parser: Go html/template and templ parsing into a common node tree
//   - assets: asset declaration extraction, directory scanning and merging
//   - resolve: aliases, module paths, entry file classification and names
//   - bundleconfig: configuration snapshots and the webpack config wrapper
//   - supervisor: webpack compile, watch and dev-server lifecycle
//   - manifest: manifest stores and template URL lookup
//   - watcher: template file notifications for the watch loop
//   - websocket: manifest update notifications for browsers
//   - config, validation: configuration loading and checks
//   - errors, logging, version: shared infrastructure
//
// # Data Flow
//
// Templates are scanned into declarations, declarations are resolved into a
// snapshot of webpack entry points and the snapshot is written as a config
// wrapper. The supervisor runs webpack against that wrapper, rebuilds the
// snapshot on every check and restarts webpack when the file changes. Each
// manifest webpack writes is moved into a manifest store, where templates
// look up asset URLs.
package internal
