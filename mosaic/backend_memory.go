package mosaic

import (
	"context"

	"github.com/paulmach/orb/geojson"
)

func init() {
	registerScheme("memory", newMemoryBackend)
}

// memoryBackend holds a document only in the current process, for tests
// and short-lived CLI invocations that shouldn't touch durable storage.
// Write is a no-op that always succeeds, since there is nowhere to
// persist to and nothing to conflict with.
type memoryBackend struct {
	baseBackend
}

func newMemoryBackend(_ context.Context, uri string, initial, cached *Document) (Backend, error) {
	doc := initial
	state := StateFresh
	if doc == nil {
		doc = cached
		state = StateLoaded
	}
	if doc == nil {
		doc = &Document{Tiles: map[string][]string{}}
	}
	return &memoryBackend{
		baseBackend: baseBackend{uri: uri, kind: "memory", doc: doc, state: state},
	}, nil
}

func (b *memoryBackend) Write(context.Context, bool) error {
	b.state = StatePersisted
	return nil
}

func (b *memoryBackend) Update(_ context.Context, features []*geojson.Feature, opts UpdateOptions) error {
	merged, err := Update(b.doc, features, opts)
	if err != nil {
		return err
	}
	b.doc = merged
	b.state = StatePersisted
	return nil
}

func (b *memoryBackend) Close() error {
	b.state = StateClosed
	return nil
}
