package session

import (
	"sync"

	"github.com/DoyleJ11/rally-backend/internal/types"
	"go.uber.org/zap"
)

// Broadcaster fans messages out to the outboxes attached to one room.
// Delivery never blocks: a full outbox misses the message and stays
// attached. Outboxes are only detached through Remove or CloseAll, which
// also close them.
type Broadcaster struct {
	mu    sync.Mutex
	conns map[string]chan types.ServerMessage
	log   *zap.Logger
}

func NewBroadcaster(log *zap.Logger) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{conns: make(map[string]chan types.ServerMessage), log: log}
}

func (b *Broadcaster) Add(connID string, outbox chan types.ServerMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.conns[connID]; ok && old != outbox {
		close(old)
	}
	b.conns[connID] = outbox
}

func (b *Broadcaster) Remove(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.conns[connID]; ok {
		delete(b.conns, connID)
		close(ch)
	}
}

// Broadcast offers msg to every attached outbox and reports how many
// accepted it.
func (b *Broadcaster) Broadcast(msg types.ServerMessage) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	delivered := 0
	for id, ch := range b.conns {
		if b.deliver(id, ch, msg) {
			delivered++
		}
	}
	return delivered
}

func (b *Broadcaster) SendTo(connID string, msg types.ServerMessage) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.conns[connID]
	if !ok {
		return false
	}
	return b.deliver(connID, ch, msg)
}

func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.conns {
		close(ch)
		delete(b.conns, id)
	}
}

func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

func (b *Broadcaster) deliver(connID string, ch chan types.ServerMessage, msg types.ServerMessage) bool {
	select {
	case ch <- msg:
		return true
	default:
		b.log.Debug("outbox full, message dropped", zap.String("conn_id", connID), zap.String("type", msg.Type))
		return false
	}
}
