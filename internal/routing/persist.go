package routing

import "github.com/encodeous/nylon/internal/identity"

// PersistedRoute is one route_table.json record: a destination and the
// best known next-hop/metric for it as of the last snapshot.
type PersistedRoute struct {
	Dest    identity.Entity `json:"dest"`
	NextHop identity.Entity `json:"next_hop"`
	Metric  uint16          `json:"metric"`
}

// PersistentState is the JSON shape written to route_table.json on
// shutdown. Reloading it does not restore ActiveLinks — it only pre-seeds
// route metrics so the engine has something to report before the first
// live update arrives; see SPEC_FULL.md §10 ("reload unconditionally").
type PersistentState struct {
	Routes []PersistedRoute `json:"routes"`
}

// Snapshot captures the current route table for persistence.
func (e *Engine) Snapshot() PersistentState {
	e.mu.Lock()
	defer e.mu.Unlock()

	ps := PersistentState{Routes: make([]PersistedRoute, 0, len(e.routes))}
	for dk, r := range e.routes {
		ps.Routes = append(ps.Routes, PersistedRoute{
			Dest:    e.names[dk],
			NextHop: r.NextHop,
			Metric:  r.Metric,
		})
	}
	return ps
}

// Seed pre-populates the route table from a previously persisted
// snapshot. Seeded entries carry no Link (uuid.Nil) since the TCP
// connections they rode on did not survive the restart; they exist only
// so Routes()/RouteFor() have an advisory answer until HandlePacket or
// SetLinkMetric establishes a live route for the same destination. A live
// update for the same destination always replaces a seeded entry,
// whatever its metric.
func (e *Engine) Seed(ps PersistentState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range ps.Routes {
		dk := key(r.Dest)
		if _, exists := e.routes[dk]; exists {
			continue
		}
		e.names[dk] = r.Dest
		e.routes[dk] = Route{NextHop: r.NextHop, Metric: r.Metric}
	}
}
