package relay

import (
	"maps"
	"slices"
)

// Registry tracks which peer-ids belong to which room.
//
// It is a plain data structure owned by the hub's event loop and is not safe
// for concurrent use. A peer-id is a member of at most one room; rooms exist
// only while they have members.
type Registry struct {
	rooms    map[string]map[string]struct{}
	memberOf map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]map[string]struct{}),
		memberOf: make(map[string]string),
	}
}

// Join adds peer to room. joined is false when peer already was a member of
// room. If peer was in a different room it is moved, and that room's name is
// returned as previous.
func (r *Registry) Join(peer, room string) (joined bool, previous string) {
	if current, ok := r.memberOf[peer]; ok {
		if current == room {
			return false, ""
		}
		r.Leave(peer)
		previous = current
	}

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	members[peer] = struct{}{}
	r.memberOf[peer] = room
	return true, previous
}

// Leave removes peer from its room and returns the room it left. Rooms left
// empty are discarded.
func (r *Registry) Leave(peer string) (string, bool) {
	room, ok := r.memberOf[peer]
	if !ok {
		return "", false
	}
	delete(r.memberOf, peer)

	members := r.rooms[room]
	delete(members, peer)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	return room, true
}

// RoomOf returns the room peer is in.
func (r *Registry) RoomOf(peer string) (string, bool) {
	room, ok := r.memberOf[peer]
	return room, ok
}

// Members returns the sorted member list of room.
func (r *Registry) Members(room string) []string {
	return slices.Sorted(maps.Keys(r.rooms[room]))
}

// RoomMates returns the other members of peer's room, sorted.
func (r *Registry) RoomMates(peer string) []string {
	room, ok := r.memberOf[peer]
	if !ok {
		return nil
	}
	mates := make([]string, 0, len(r.rooms[room]))
	for _, id := range r.Members(room) {
		if id != peer {
			mates = append(mates, id)
		}
	}
	return mates
}

// SameRoom reports whether a and b are both members of the same room.
func (r *Registry) SameRoom(a, b string) bool {
	ra, ok := r.memberOf[a]
	if !ok {
		return false
	}
	rb, ok := r.memberOf[b]
	return ok && ra == rb
}

// Rooms returns the names of all non-empty rooms, sorted.
func (r *Registry) Rooms() []string {
	return slices.Sorted(maps.Keys(r.rooms))
}

// Len returns the number of peers that are in a room.
func (r *Registry) Len() int {
	return len(r.memberOf)
}
