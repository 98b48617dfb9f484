package chat

// presence maps each authenticated user to its live connection. A later
// connection for the same user replaces the earlier one.
type presence struct {
	byUser map[string]*Conn
}

func newPresence() *presence {
	return &presence{byUser: make(map[string]*Conn)}
}

// set records conn for userID and returns the connection it replaced
func (p *presence) set(userID string, conn *Conn) *Conn {
	prev := p.byUser[userID]
	p.byUser[userID] = conn
	return prev
}

// remove drops the entry pointing at connID and returns its user
func (p *presence) remove(connID string) (string, bool) {
	for userID, conn := range p.byUser {
		if conn.id == connID {
			delete(p.byUser, userID)
			return userID, true
		}
	}
	return "", false
}

func (p *presence) get(userID string) (*Conn, bool) {
	conn, ok := p.byUser[userID]
	return conn, ok
}

func (p *presence) snapshot() map[string]string {
	out := make(map[string]string, len(p.byUser))
	for userID, conn := range p.byUser {
		out[userID] = conn.id
	}
	return out
}
