package server

import (
	"sync"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
)

// subscriberBuffer is how many frames a slow websocket client may fall
// behind before the hub starts dropping events for it. Screenshot frames
// are large, so the buffer trades memory for not stalling the assistant.
const subscriberBuffer = 128

// Hub fans assistant and agent events out to websocket subscribers. It is
// the process-wide EventSink: Publish never blocks, so a stalled client
// loses frames instead of stalling the pipeline.
type Hub struct {
	log *zap.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]chan []byte
}

var _ schemas.EventSink = (*Hub)(nil)

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		log:  logger.Named("Events"),
		subs: make(map[int]chan []byte),
	}
}

// Publish encodes the event once and offers it to every subscriber.
func (h *Hub) Publish(event schemas.AssistantEvent) {
	frame, err := json.Marshal(event)
	if err != nil {
		h.log.Error("Could not encode event.", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		select {
		case sub <- frame:
		default:
			h.log.Debug("Subscriber is not keeping up, dropping frame.",
				zap.Int("subscriber", id), zap.String("type", string(event.Type)))
		}
	}
}

// Subscribe attaches a new event consumer and returns its id and feed. The
// channel closes on hub shutdown; callers must Unsubscribe when done.
func (h *Hub) Subscribe() (int, <-chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ch := make(chan []byte, subscriberBuffer)
	h.subs[h.nextID] = ch
	h.log.Debug("Event subscriber attached.", zap.Int("subscriber", h.nextID))
	return h.nextID, ch
}

// Unsubscribe detaches a consumer and closes its feed.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
		h.log.Debug("Event subscriber detached.", zap.Int("subscriber", id))
	}
}

// Shutdown closes every subscriber feed, releasing any attached websocket
// handlers.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
