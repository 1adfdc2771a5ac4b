package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/brady131313/rschat/internal/adminapi"
	"github.com/brady131313/rschat/internal/chatstate"
)

func main() {
	if len(os.Args) > 1 {
		if RunCLI(os.Args[1:]) {
			return
		}
	}

	addr := flag.String("a", "127.0.0.1:4000", "TCP listen address")
	adminAddr := flag.String("admin-addr", "", "read-only admin HTTP API listen address (empty to disable)")
	rateLimit := flag.Float64("rate-limit", 20, "maximum inbound commands per second per peer (0 disables flood control)")
	rateBurst := flag.Int("rate-burst", 40, "burst capacity for -rate-limit")
	metricsInterval := flag.Duration("metrics-interval", 30*time.Second, "interval between metrics log lines")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	state := chatstate.New()
	srv := NewServer(*addr, state, *rateLimit, *rateBurst)

	go RunMetrics(ctx, state, *metricsInterval)

	if *adminAddr != "" {
		admin := adminapi.New(state)
		go func() {
			if err := admin.Run(ctx, *adminAddr); err != nil {
				log.Printf("[admin] %v", err)
			}
		}()
		log.Printf("[admin] listening on %s", *adminAddr)
	}

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("[server] %v", err)
	}
}
