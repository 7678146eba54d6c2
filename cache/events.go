package cache

import (
	"github.com/ethereum/go-ethereum/event"
)

// EventKind enumerates the out-of-band event stream's message kinds, per
// spec §4.8.
type EventKind string

const (
	EventCacheLoadStart    EventKind = "cache_load_start"
	EventCacheLoadComplete EventKind = "cache_load_complete"
	EventCacheLoadError    EventKind = "cache_load_error"
	EventPrefetchStart     EventKind = "prefetch_start"
	EventPrefetchSuccess   EventKind = "prefetch_success"
	EventPrefetchError     EventKind = "prefetch_error"
	EventCacheEvict        EventKind = "cache_evict"
	EventWorkerError       EventKind = "worker_error"
)

// Event carries the triggering key and, for error kinds, the failure
// value.
type Event[K Key] struct {
	Kind EventKind
	Key  K
	Err  error
}

// EventCallback is the optional event sink a Cache is configured with. It
// is always invoked outside the cache's critical section (spec §4.8), on
// a dedicated goroutine fed by an event.Feed, so a callback that re-enters
// the cache cannot deadlock against the mutex it would otherwise be
// invoked under.
type EventCallback[K Key] func(Event[K])

// eventHub fans events out from the single internal event.Feed to zero or
// one external subscriber (the configured EventCallback), mirroring the
// chainSub/chainCh subscription pattern used for chain-head fan-out.
type eventHub[K Key] struct {
	feed event.Feed
}

func (h *eventHub[K]) publish(e Event[K]) {
	h.feed.Send(e)
}

func (h *eventHub[K]) subscribe(ch chan Event[K]) event.Subscription {
	return h.feed.Subscribe(ch)
}
