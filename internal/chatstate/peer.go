package chatstate

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brady131313/rschat/internal/mailbox"
	"github.com/brady131313/rschat/internal/protocol"
)

// Peer is the server's handle on one connected client: its outbound
// mailbox, its kill signal, and the bits of identity ServerState needs to
// route to it. Username is empty until Hello succeeds.
type Peer struct {
	ID       uuid.UUID
	Addr     string
	Username string

	Mailbox *mailbox.Queue[protocol.Response]
	Kill    *mailbox.KillSignal

	livenessMu sync.Mutex
	lastSeen   time.Time
}

// NewPeer returns a fresh, un-authenticated peer bound to addr.
func NewPeer(addr string) *Peer {
	return &Peer{
		ID:       uuid.New(),
		Addr:     addr,
		Mailbox:  mailbox.NewQueue[protocol.Response](),
		Kill:     mailbox.NewKillSignal(),
		lastSeen: time.Now(),
	}
}

// Touch records that the peer was just seen sending a KeepAlive command,
// resetting its reap deadline. Called by ServerState.Apply, never
// directly by handlers.
func (p *Peer) Touch() {
	p.livenessMu.Lock()
	defer p.livenessMu.Unlock()
	p.lastSeen = time.Now()
}

// LastSeen returns the last time Touch was called (or the peer's
// connect time, if never). The reaper uses this to decide eviction.
func (p *Peer) LastSeen() time.Time {
	p.livenessMu.Lock()
	defer p.livenessMu.Unlock()
	return p.lastSeen
}

// Send enqueues r on the peer's mailbox. Best-effort: a peer that has
// already been killed still accepts pushes (mailbox.Queue only drops after
// Close), so callers don't need to special-case a racing disconnect.
func (p *Peer) Send(r protocol.Response) {
	p.Mailbox.Push(r)
}
