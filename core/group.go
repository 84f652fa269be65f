package core

import (
	"log/slog"
	"sync"
)

// Group tracks a set of live connections so that a host shutting down
// can take them all down gracefully in one call.
type Group struct {
	logger *slog.Logger

	mu    sync.Mutex
	conns map[string]*Conn
}

func NewGroup(log *slog.Logger) *Group {
	if log == nil {
		log = slog.Default()
	}
	return &Group{
		logger: log,
		conns:  make(map[string]*Conn),
	}
}

func (g *Group) Add(c *Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conns[c.ID()] = c
}

func (g *Group) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.conns, id)
}

func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Shutdown gracefully closes every tracked connection and empties the
// group. Connections that are already closed are skipped by their own
// no-op close behavior.
func (g *Group) Shutdown(reason string) {
	g.mu.Lock()
	conns := make([]*Conn, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.conns = make(map[string]*Conn)
	g.mu.Unlock()

	g.logger.Info("shutting down connection group", "conns", len(conns), "reason", reason)
	for _, c := range conns {
		c.GracefulShutdown(reason)
	}
}
