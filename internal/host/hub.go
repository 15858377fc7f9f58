package host

import (
	"log/slog"
	"sync"

	"github.com/rbright/redbridge/internal/bridge"
	"github.com/rbright/redbridge/internal/ipc"
)

const defaultWatchBuffer = 64

// Hub fans bridge events out to every watching client. Slow watchers lose
// events instead of stalling the relay.
type Hub struct {
	buffer int
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[chan ipc.Event]struct{}
}

// NewHub returns a Hub whose watchers buffer up to buffer events.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultWatchBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		buffer:   buffer,
		logger:   logger,
		watchers: make(map[chan ipc.Event]struct{}),
	}
}

func (h *Hub) Emit(ev bridge.Event) {
	line := ipc.Event{Event: ev.Name, Args: ev.Args()}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watchers {
		select {
		case ch <- line:
		default:
			h.logger.Warn("dropping event for slow watcher", "event", ev.Name)
		}
	}
}

// Watch registers a watcher. The returned cancel func unregisters it and
// closes the channel; it is safe to call more than once.
func (h *Hub) Watch() (<-chan ipc.Event, func()) {
	ch := make(chan ipc.Event, h.buffer)

	h.mu.Lock()
	h.watchers[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.watchers, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Watchers reports how many clients are currently watching.
func (h *Hub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}
