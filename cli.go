package main

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

// Version is the server's reported version string.
const Version = "0.1.0"

// RunCLI handles subcommand execution. Returns true if a subcommand was
// handled, meaning main should exit without starting the server.
func RunCLI(args []string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "version":
		fmt.Printf("rschat %s\n", Version)
		return true
	case "healthcheck":
		return cliHealthcheck(args[1:])
	default:
		return false
	}
}

// cliHealthcheck hits a running server's admin API /health endpoint and
// exits non-zero if it's unreachable or unhealthy.
func cliHealthcheck(args []string) bool {
	addr := "127.0.0.1:8080"
	if len(args) > 0 {
		addr = args[0]
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get("http://" + addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "healthcheck failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("ok")
	return true
}
