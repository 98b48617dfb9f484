package chat

import (
	"strconv"
	"time"
)

// messageIDs hands out unix millisecond ids that never repeat within the
// process, even when two messages land in the same millisecond. Owned by the
// gateway loop.
type messageIDs struct {
	last int64
	now  func() time.Time
}

func (m *messageIDs) next() string {
	ms := m.now().UnixMilli()
	if ms <= m.last {
		ms = m.last + 1
	}
	m.last = ms
	return strconv.FormatInt(ms, 10)
}
