package main

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/brady131313/rschat/internal/chatstate"
	"github.com/brady131313/rschat/internal/connection"
	"github.com/brady131313/rschat/internal/mailbox"
	"github.com/brady131313/rschat/internal/peerhandler"
	"github.com/brady131313/rschat/internal/ratelimit"
)

// defaultKeepAliveInterval is how often the server publishes a tick to
// the keep-alive watch; every handler wakes and broadcasts
// Response::KeepAlive.
const defaultKeepAliveInterval = 5 * time.Second

// defaultKeepAliveCheck is how often the reaper scans for peers it hasn't
// seen a KeepAlive from; a silent peer is evicted within
// 2 * KeepAliveCheck.
const defaultKeepAliveCheck = 10 * time.Second

// Server owns the TCP acceptor loop and the two process-wide periodic
// tasks (keep-alive emitter and reaper).
type Server struct {
	addr           string
	state          chatstate.ServerState
	keepAlive      *mailbox.KeepAliveWatch
	rateLimit      float64
	rateBurst      int
	noRateLimiting bool

	// KeepAliveInterval and KeepAliveCheck default to the package
	// constants above; tests shorten them to exercise the reaper without
	// a multi-second sleep.
	KeepAliveInterval time.Duration
	KeepAliveCheck    time.Duration

	mu        sync.Mutex
	livePeers map[*chatstate.Peer]struct{}
}

// NewServer returns a server bound to addr, sharing state with any other
// Server constructed from the same chatstate.ServerState. A rateLimit of
// 0 or less disables per-peer flood control entirely.
func NewServer(addr string, state chatstate.ServerState, rateLimit float64, rateBurst int) *Server {
	return &Server{
		addr:              addr,
		state:             state,
		keepAlive:         mailbox.NewKeepAliveWatch(),
		rateLimit:         rateLimit,
		rateBurst:         rateBurst,
		noRateLimiting:    rateLimit <= 0,
		KeepAliveInterval: defaultKeepAliveInterval,
		KeepAliveCheck:    defaultKeepAliveCheck,
		livePeers:         make(map[*chatstate.Peer]struct{}),
	}
}

// Run binds the listener and blocks, accepting connections and running
// the keep-alive emitter and reaper, until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	log.Printf("[server] listening on %s", s.addr)

	go s.runKeepAliveEmitter(ctx)
	go s.runReaper(ctx)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("[server] accept: %v", err)
			continue
		}
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	peer := chatstate.NewPeer(conn.RemoteAddr().String())
	s.trackPeer(peer)
	defer s.untrackPeer(peer)

	var limiter *ratelimit.Limiter
	if !s.noRateLimiting {
		limiter = ratelimit.New(s.rateLimit, s.rateBurst)
	}

	h := peerhandler.New(s.state, connection.New(conn), peer, s.keepAlive, limiter)
	h.Run()
}

func (s *Server) trackPeer(p *chatstate.Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.livePeers[p] = struct{}{}
}

func (s *Server) untrackPeer(p *chatstate.Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.livePeers, p)
}

func (s *Server) runKeepAliveEmitter(ctx context.Context) {
	ticker := time.NewTicker(s.KeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.keepAlive.Tick()
		}
	}
}

// runReaper kills, at each KeepAliveCheck tick, any peer whose
// Peer.LastSeen is more than one KeepAliveCheck old, so a silent peer is
// evicted within 2 * KeepAliveCheck of its last KeepAlive (or of
// connecting). This is tracked independently of the server's
// own keep-alive broadcast watch (spec §9: two unrelated heartbeats
// sharing a name).
func (s *Server) runReaper(ctx context.Context) {
	ticker := time.NewTicker(s.KeepAliveCheck)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reapOnce()
		}
	}
}

func (s *Server) reapOnce() {
	cutoff := time.Now().Add(-s.KeepAliveCheck)

	s.mu.Lock()
	var dead []*chatstate.Peer
	for p := range s.livePeers {
		if p.LastSeen().Before(cutoff) {
			dead = append(dead, p)
		}
	}
	s.mu.Unlock()

	for _, p := range dead {
		log.Printf("[reaper] evicting unresponsive peer addr=%s username=%s", p.Addr, p.Username)
		p.Kill.Kill()
	}
}
