package ws

import "sync"

// Registry is the single source of truth for room membership. All
// mutation funnels through it; broadcasts iterate snapshots so they
// never observe a half-updated member set. State is process-local and
// starts empty on restart — clients rejoin explicitly.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{rooms: map[string]map[*Conn]struct{}{}}
}

// Join adds the connection to the room, creating it on first join.
// Returns false without mutation if the connection is already a member,
// so callers can surface the duplicate join instead of hiding it.
func (g *Registry) Join(roomID string, c *Conn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	members := g.rooms[roomID]
	if members == nil {
		members = map[*Conn]struct{}{}
		g.rooms[roomID] = members
	}
	if _, ok := members[c]; ok {
		return false
	}
	members[c] = struct{}{}
	return true
}

// Leave removes the connection from the room; the room entry itself is
// deleted once its last member leaves. No-op for non-members.
func (g *Registry) Leave(roomID string, c *Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.remove(roomID, c)
}

// IsMember reports whether the connection currently belongs to the room
func (g *Registry) IsMember(roomID string, c *Conn) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.rooms[roomID][c]
	return ok
}

// MembersOf returns a stable snapshot of the room's members; the slice
// is the caller's to iterate regardless of concurrent joins and leaves.
func (g *Registry) MembersOf(roomID string) []*Conn {
	g.mu.RLock()
	defer g.mu.RUnlock()

	members := g.rooms[roomID]
	if len(members) == 0 {
		return nil
	}
	out := make([]*Conn, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// RemoveEverywhere drops the connection from every room it joined.
// Called on connection close so no room retains a dead member.
func (g *Registry) RemoveEverywhere(c *Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for roomID, members := range g.rooms {
		if _, ok := members[c]; ok {
			g.remove(roomID, c)
		}
	}
}

// remove is the single deletion path; callers hold the write lock.
func (g *Registry) remove(roomID string, c *Conn) {
	members := g.rooms[roomID]
	delete(members, c)
	if len(members) == 0 {
		delete(g.rooms, roomID)
	}
}
