package chat

import "sort"

// registry tracks room membership. A user is in at most one room; roomOf is
// the reverse index kept in step with rooms. Only the gateway loop touches it.
type registry struct {
	rooms  map[string]map[string]*Conn
	roomOf map[string]string
}

func newRegistry() *registry {
	return &registry{
		rooms:  make(map[string]map[string]*Conn),
		roomOf: make(map[string]string),
	}
}

// join adds userID to roomID through conn. If the user was in another room
// that room is returned as previous. joined is false when the user was
// already a member of roomID, in which case only the connection is updated.
func (r *registry) join(roomID, userID string, conn *Conn) (previous string, joined bool) {
	if current, ok := r.roomOf[userID]; ok {
		if current == roomID {
			r.rooms[roomID][userID] = conn
			return "", false
		}
		r.remove(current, userID)
		previous = current
	}

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]*Conn)
		r.rooms[roomID] = members
	}
	members[userID] = conn
	r.roomOf[userID] = roomID
	return previous, true
}

// leave removes userID from roomID and reports whether it was a member
func (r *registry) leave(roomID, userID string) bool {
	if r.roomOf[userID] != roomID {
		return false
	}
	r.remove(roomID, userID)
	return true
}

func (r *registry) remove(roomID, userID string) {
	delete(r.roomOf, userID)
	members := r.rooms[roomID]
	delete(members, userID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// findRoomOf returns the room the user is in
func (r *registry) findRoomOf(userID string) (string, bool) {
	roomID, ok := r.roomOf[userID]
	return roomID, ok
}

func (r *registry) isMember(roomID, userID string) bool {
	return r.roomOf[userID] == roomID && roomID != ""
}

// memberConn is the connection userID joined roomID with
func (r *registry) memberConn(roomID, userID string) *Conn {
	return r.rooms[roomID][userID]
}

// others returns the connections of every member but exclude
func (r *registry) others(roomID, exclude string) []*Conn {
	members := r.rooms[roomID]
	conns := make([]*Conn, 0, len(members))
	for userID, conn := range members {
		if userID != exclude {
			conns = append(conns, conn)
		}
	}
	return conns
}

func (r *registry) members(roomID string) []string {
	ids := make([]string, 0, len(r.rooms[roomID]))
	for userID := range r.rooms[roomID] {
		ids = append(ids, userID)
	}
	sort.Strings(ids)
	return ids
}

func (r *registry) size() (rooms, members int) {
	return len(r.rooms), len(r.roomOf)
}
