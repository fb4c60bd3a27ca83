// Command meshkv-cli talks to a meshkv node over gRPC. It supports two
// invocation styles: a minimal positional dispatch
// (`meshkv-cli <address> put|get|health ...`), preserved for scripts and
// health checks, and a cobra command tree (`put`/`get`/`sync`/`watch`) for
// interactive use, since a convergence-triggering `sync` verb and a polling
// `watch` verb need their own flags that a flat positional switch has no
// room for.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/devrajpatel/meshkv/pkg/client"
)

func main() {
	if len(os.Args) >= 3 && isLegacyVerb(os.Args[2]) {
		runLegacy(os.Args[1], os.Args[2], os.Args[3:])
		return
	}
	Execute()
}

func isLegacyVerb(verb string) bool {
	switch verb {
	case "put", "get", "health":
		return true
	default:
		return false
	}
}

// runLegacy dispatches the flat positional form: address is a positional
// argument, not a flag.
func runLegacy(addr, cmd string, args []string) {
	c, err := client.NewClient(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error connecting: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch cmd {
	case "put":
		if len(args) < 2 {
			fmt.Println("usage: meshkv-cli <address> put <key> <value>")
			os.Exit(1)
		}
		resp, err := c.Put(ctx, args[0], []byte(args[1]))
		if err != nil {
			fmt.Fprintf(os.Stderr, "PUT failed: %v\n", err)
			os.Exit(1)
		}
		if !resp.Success {
			fmt.Printf("put failed: %s\n", resp.Error)
			os.Exit(1)
		}
		fmt.Println("put successful")

	case "get":
		if len(args) < 1 {
			fmt.Println("usage: meshkv-cli <address> get <key>")
			os.Exit(1)
		}
		resp, err := c.Get(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "GET failed: %v\n", err)
			os.Exit(1)
		}
		if !resp.Found {
			fmt.Println("key not found")
			os.Exit(1)
		}
		fmt.Printf("value: %s\n", string(resp.Value))

	case "health":
		resp, err := c.HealthCheck(ctx, "cli", time.Now().UnixNano())
		if err != nil {
			fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
			os.Exit(1)
		}
		if !resp.Healthy {
			fmt.Println("node unhealthy")
			os.Exit(1)
		}
		fmt.Printf("node healthy (node_id=%s)\n", resp.NodeID)
	}
}
