package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistryJoinLeave(t *testing.T) {
	r := newRegistry()
	a, b := newConn(nil, 1), newConn(nil, 1)

	prev, joined := r.join("room1", "u1", a)
	assert.Empty(t, prev)
	assert.True(t, joined)
	r.join("room1", "u2", b)
	assert.Equal(t, []string{"u1", "u2"}, r.members("room1"))

	// rejoining the same room is a no-op for membership
	prev, joined = r.join("room1", "u1", a)
	assert.Empty(t, prev)
	assert.False(t, joined)

	// joining another room leaves the first one
	prev, joined = r.join("room2", "u1", a)
	assert.Equal(t, "room1", prev)
	assert.True(t, joined)
	assert.Equal(t, []string{"u2"}, r.members("room1"))
	roomID, ok := r.findRoomOf("u1")
	assert.True(t, ok)
	assert.Equal(t, "room2", roomID)

	assert.False(t, r.leave("room1", "u1"))
	assert.True(t, r.leave("room2", "u1"))
	assert.False(t, r.leave("room2", "u1"))
	_, ok = r.findRoomOf("u1")
	assert.False(t, ok)

	rooms, members := r.size()
	assert.Equal(t, 1, rooms, "empty rooms are removed")
	assert.Equal(t, 1, members)
}

func TestRegistryOthers(t *testing.T) {
	r := newRegistry()
	a, b, c := newConn(nil, 1), newConn(nil, 1), newConn(nil, 1)
	r.join("room", "u1", a)
	r.join("room", "u2", b)
	r.join("room", "u3", c)

	others := r.others("room", "u2")
	assert.ElementsMatch(t, []*Conn{a, c}, others)
	assert.Empty(t, r.others("missing", "u1"))
	assert.True(t, r.isMember("room", "u3"))
	assert.False(t, r.isMember("other", "u3"))
	assert.Same(t, b, r.memberConn("room", "u2"))
}

func TestPresence(t *testing.T) {
	p := newPresence()
	first, second := newConn(nil, 1), newConn(nil, 1)

	assert.Nil(t, p.set("u1", first))
	assert.Same(t, first, p.set("u1", second))

	got, ok := p.get("u1")
	assert.True(t, ok)
	assert.Same(t, second, got)

	// the replaced connection no longer owns an entry
	_, ok = p.remove(first.id)
	assert.False(t, ok)

	userID, ok := p.remove(second.id)
	assert.True(t, ok)
	assert.Equal(t, "u1", userID)
	_, ok = p.get("u1")
	assert.False(t, ok)
}

func TestMessageIDsIncrease(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	ids := messageIDs{now: func() time.Time { return fixed }}

	assert.Equal(t, "1700000000000", ids.next())
	assert.Equal(t, "1700000000001", ids.next())
	assert.Equal(t, "1700000000002", ids.next())

	fixed = fixed.Add(time.Second)
	assert.Equal(t, "1700000001000", ids.next())
}
