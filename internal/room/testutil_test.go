package room_test

import (
	"log"
	"io"
	"time"

	"github.com/masc-mcp/masc/internal/room"
	"github.com/masc-mcp/masc/internal/store"
)

// fixedClock lets tests pin "now" and advance it deterministically, the
// way the zombie-reclamation scenario requires.
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestRoom(name string, fc *fixedClock) *room.Room {
	return room.New(name, store.NewMemory(),
		room.WithClock(fc),
		room.WithLogger(log.New(io.Discard, "", 0)),
	)
}
