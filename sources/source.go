// Package sources defines the pluggable source abstraction: a named
// external provider that resolves item metadata and produces download
// units, plus the registry that maps source names to providers.
package sources

import (
	"context"
	"fmt"
	"sort"

	"github.com/petterhj/yt-dvr/types"
)

// ProgressFunc receives progress ticks emitted by a running download unit.
type ProgressFunc func(types.JobProgress)

// DownloadUnit is a single-use piece of download work bound to one job.
// Run blocks until the download finishes or faults, reporting progress
// through the callback. The returned result string is stored on the job's
// terminal transition; an empty result is stored as null.
type DownloadUnit interface {
	Run(ctx context.Context, progress ProgressFunc) (result string, err error)
}

// Source is a named external provider of downloadable items.
type Source interface {
	// Resolve fetches metadata for a single item id, returning
	// types.ErrItemNotFound when the source does not know it.
	Resolve(ctx context.Context, itemID string) (types.Item, error)
	// Catalog lists the items the source currently offers, e.g. the
	// contents of a watched playlist.
	Catalog(ctx context.Context) ([]types.Item, error)
	// Config describes the source's configuration for diagnostics.
	Config() map[string]string
	// DownloadUnit produces the unit of work that downloads the job's
	// item. Units are never reused across jobs.
	DownloadUnit(job types.JobWithItem) DownloadUnit
}

// Registry is an immutable mapping from source name to provider, built
// once at process start. It is safe for concurrent use without locking.
type Registry struct {
	sources map[string]Source
}

// NewRegistry builds a registry from the given named sources.
func NewRegistry(sources map[string]Source) *Registry {
	copied := make(map[string]Source, len(sources))
	for name, src := range sources {
		copied[name] = src
	}
	return &Registry{sources: copied}
}

// Lookup returns the source registered under name, or
// types.ErrUnknownSource when no such source exists.
func (r *Registry) Lookup(name string) (Source, error) {
	src, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownSource, name)
	}
	return src, nil
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Configs collects every source's diagnostic configuration, keyed by
// source name.
func (r *Registry) Configs() map[string]map[string]string {
	configs := make(map[string]map[string]string, len(r.sources))
	for name, src := range r.sources {
		configs[name] = src.Config()
	}
	return configs
}
