package main

import (
	"context"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/brady131313/rschat/internal/chatstate"
)

// RunMetrics logs connected-user and room counts every interval until ctx
// is canceled. Zero-activity ticks are skipped to keep idle logs quiet.
func RunMetrics(ctx context.Context, state chatstate.ServerState, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			users := state.Users()
			rooms := state.Rooms()
			if len(users) == 0 && len(rooms) == 0 {
				continue
			}
			log.Printf("[metrics] users=%s rooms=%s",
				humanize.Comma(int64(len(users))), humanize.Comma(int64(len(rooms))))
		}
	}
}
