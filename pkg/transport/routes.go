package transport

import (
	"context"
	"sync"
)

// RouteMemory remembers which route last worked for a wholesaler and
// action so the next call can try it first.
type RouteMemory interface {
	Recall(ctx context.Context, wholesalerID, action string) (Route, bool)
	Remember(ctx context.Context, wholesalerID, action string, route Route)
}

type memoryRoutes struct {
	mu     sync.RWMutex
	routes map[string]Route
}

// NewRouteMemory returns a process-local RouteMemory.
func NewRouteMemory() RouteMemory {
	return &memoryRoutes{routes: make(map[string]Route)}
}

func (m *memoryRoutes) Recall(_ context.Context, wholesalerID, action string) (Route, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.routes[wholesalerID+"\x00"+action]
	return r, ok
}

func (m *memoryRoutes) Remember(_ context.Context, wholesalerID, action string, route Route) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[wholesalerID+"\x00"+action] = route
}
