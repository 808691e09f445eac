// Package notify implements the observer/callback fan-out spec §9 calls
// for: three typed callbacks (transaction, error, state) that the
// Scanner and Recovery Manager invoke as they make progress, plus an
// optional local websocket broadcast server so an external dashboard can
// tail wallet activity instead of polling the SDK in-process.
//
// Grounded on the teacher's ws/user.go: its OnFillFunc single-consumer
// callback registration becomes three callbacks here (one per §9 event
// kind), and its reconnect/ping-loop shape is reused — inverted from
// client to server — for the broadcast server in wsserver.go.
package notify

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/lasergun-protocol/sdk-sub000/internal/model"
)

// TxFunc is invoked whenever a shield/unshield/transfer/received/
// remainder/consolidate transaction is recorded.
type TxFunc func(model.Transaction)

// ErrFunc is invoked on a scanner or recovery error that does not abort
// the loop (spec §7: "scanner errors are delivered via the error
// callback").
type ErrFunc func(err error)

// StateFunc is invoked on every scanner state transition (spec §4.4:
// Idle/Recovering/Running).
type StateFunc func(state string)

// Hub is the single-consumer observer registry one wallet context's SDK
// instance owns. Each callback slot holds at most one subscriber, per
// §9's "single-consumer semantics" design note.
type Hub struct {
	mu      sync.RWMutex
	onTx    TxFunc
	onErr   ErrFunc
	onState StateFunc

	ws *wsBroadcastServer
}

// NewHub constructs an empty Hub. Callbacks are registered with
// OnTransaction/OnError/OnState before the scanner or recovery manager
// starts.
func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) OnTransaction(fn TxFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onTx = fn
}

func (h *Hub) OnError(fn ErrFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onErr = fn
}

func (h *Hub) OnState(fn StateFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onState = fn
}

// Transaction fires the transaction callback and, if attached, pushes the
// event to every connected websocket client.
func (h *Hub) Transaction(tx model.Transaction) {
	h.mu.RLock()
	cb := h.onTx
	ws := h.ws
	h.mu.RUnlock()
	if cb != nil {
		cb(tx)
	}
	if ws != nil {
		ws.broadcast(wsEvent{Kind: "transaction", Transaction: &tx})
	}
}

// Error fires the error callback; it never aborts the caller's loop.
func (h *Hub) Error(err error) {
	if err == nil {
		return
	}
	h.mu.RLock()
	cb := h.onErr
	ws := h.ws
	h.mu.RUnlock()
	if cb != nil {
		cb(err)
	} else {
		log.Printf("[notify] unhandled error: %v", err)
	}
	if ws != nil {
		ws.broadcast(wsEvent{Kind: "error", Error: err.Error()})
	}
}

// State fires the state callback.
func (h *Hub) State(state string) {
	h.mu.RLock()
	cb := h.onState
	ws := h.ws
	h.mu.RUnlock()
	if cb != nil {
		cb(state)
	}
	if ws != nil {
		ws.broadcast(wsEvent{Kind: "state", State: state})
	}
}

// wsEvent is the JSON shape pushed to attached websocket clients.
type wsEvent struct {
	Kind        string             `json:"kind"`
	Transaction *model.Transaction `json:"transaction,omitempty"`
	Error       string             `json:"error,omitempty"`
	State       string             `json:"state,omitempty"`
}

func (e wsEvent) mustJSON() []byte {
	b, err := json.Marshal(e)
	if err != nil {
		return []byte(`{"kind":"marshal_error"}`)
	}
	return b
}
