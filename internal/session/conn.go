package session

import (
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/otrio-backend/internal/protocol"
)

type binding struct {
	outbox       chan<- protocol.Outbound
	close        func(reason string)
	roomID       string
	seatID       string
	invalidCount int
}

// bindingTable is the Dispatcher's connID -> binding map plus its
// reverse roomID -> connIDs index for fanout, guarded by a single
// mutex since both directions must stay consistent together.
type bindingTable struct {
	mu     sync.RWMutex
	byConn map[string]*binding
	byRoom map[string]map[string]struct{}
}

func newBindingTable() *bindingTable {
	return &bindingTable{
		byConn: make(map[string]*binding),
		byRoom: make(map[string]map[string]struct{}),
	}
}

func (t *bindingTable) register(connID string, outbox chan<- protocol.Outbound, closeFn func(reason string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byConn[connID] = &binding{outbox: outbox, close: closeFn}
}

func (t *bindingTable) unregister(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.byConn[connID]
	if !ok {
		return
	}
	if b.roomID != "" {
		t.detachFromRoomLocked(connID, b.roomID)
	}
	delete(t.byConn, connID)
}

func (t *bindingTable) bind(connID, roomID, seatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.byConn[connID]
	if !ok {
		return
	}
	if b.roomID != "" {
		t.detachFromRoomLocked(connID, b.roomID)
	}
	b.roomID = roomID
	b.seatID = seatID
	if t.byRoom[roomID] == nil {
		t.byRoom[roomID] = make(map[string]struct{})
	}
	t.byRoom[roomID][connID] = struct{}{}
}

func (t *bindingTable) unbind(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.byConn[connID]
	if !ok || b.roomID == "" {
		return
	}
	t.detachFromRoomLocked(connID, b.roomID)
	b.roomID = ""
	b.seatID = ""
}

func (t *bindingTable) detachFromRoomLocked(connID, roomID string) {
	if set, ok := t.byRoom[roomID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(t.byRoom, roomID)
		}
	}
}

type bindingView struct {
	roomID string
	seatID string
}

func (t *bindingTable) get(connID string) (bindingView, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.byConn[connID]
	if !ok {
		return bindingView{}, false
	}
	return bindingView{roomID: b.roomID, seatID: b.seatID}, true
}

func (t *bindingTable) send(connID string, out protocol.Outbound, logger *zap.Logger) {
	t.mu.RLock()
	b, ok := t.byConn[connID]
	t.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case b.outbox <- out:
	default:
		if logger != nil {
			logger.Warn("connection outbox full, closing", zap.String("conn_id", connID))
		}
		if b.close != nil {
			b.close("outbox overflow")
		}
	}
}

// recordInvalid increments connID's malformed/unrecognized-message
// counter and returns the new count, or 0 if connID is no longer
// registered (already closed).
func (t *bindingTable) recordInvalid(connID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.byConn[connID]
	if !ok {
		return 0
	}
	b.invalidCount++
	return b.invalidCount
}

// closeConn force-closes connID via its registered close func, the same
// mechanism send uses for outbox overflow.
func (t *bindingTable) closeConn(connID, reason string) {
	t.mu.RLock()
	b, ok := t.byConn[connID]
	t.mu.RUnlock()
	if !ok || b.close == nil {
		return
	}
	b.close(reason)
}

// fanout delivers evts to every connection currently bound to roomID.
func (t *bindingTable) fanout(roomID string, evts []protocol.Outbound, logger *zap.Logger) {
	t.mu.RLock()
	connIDs := make([]string, 0, len(t.byRoom[roomID]))
	for id := range t.byRoom[roomID] {
		connIDs = append(connIDs, id)
	}
	t.mu.RUnlock()

	for _, id := range connIDs {
		for _, out := range evts {
			t.send(id, out, logger)
		}
	}
}
