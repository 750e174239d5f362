package workspace

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry maps browser sessions to their workspaces.
type Registry struct {
	opts    Options
	idleTTL time.Duration
	nowFunc func() time.Time
	newID   func() string

	mu    sync.Mutex
	items map[string]*entry
}

type entry struct {
	ws       *Workspace
	lastUsed time.Time
}

// NewRegistry returns an empty registry. Workspaces unused for idleTTL are
// dropped by Sweep; zero keeps them forever.
func NewRegistry(opts Options, idleTTL time.Duration) *Registry {
	return &Registry{
		opts:    opts,
		idleTTL: idleTTL,
		nowFunc: time.Now,
		newID:   uuid.NewString,
		items:   map[string]*entry{},
	}
}

// Get returns the workspace for id and marks it used.
func (r *Registry) Get(id string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.nowFunc()
	return e.ws, true
}

// Create starts a new signed-out workspace under a fresh ID.
func (r *Registry) Create() *Workspace {
	ws := New(r.newID(), r.opts)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[ws.ID] = &entry{ws: ws, lastUsed: r.nowFunc()}
	return ws
}

// Drop forgets a workspace.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}

// Len reports how many workspaces are held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Sweep drops idle workspaces and returns how many were removed.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.nowFunc().Add(-r.idleTTL)
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for id, e := range r.items {
		if e.lastUsed.Before(cutoff) {
			delete(r.items, id)
			n++
		}
	}
	if n > 0 {
		slog.Debug("idle workspaces dropped", "count", n, "remaining", len(r.items))
	}
	return n
}
