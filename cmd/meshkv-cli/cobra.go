package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/devrajpatel/meshkv/pkg/client"
)

var rootCmd = &cobra.Command{
	Use:   "meshkv-cli",
	Short: "client for a meshkv replica",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(putCmd, getCmd, delCmd, syncCmd, watchCmd)
}

var putCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "write a key/value pair to a node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		c, err := client.NewClient(addr)
		if err != nil {
			return fmt.Errorf("connect %s: %w", addr, err)
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		resp, err := c.Put(ctx, args[0], []byte(args[1]))
		if err != nil {
			return fmt.Errorf("put: %w", err)
		}
		if !resp.Success {
			return fmt.Errorf("put rejected: %s", resp.Error)
		}
		fmt.Println("put successful")
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "read a key from a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		c, err := client.NewClient(addr)
		if err != nil {
			return fmt.Errorf("connect %s: %w", addr, err)
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		resp, err := c.Get(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		if !resp.Found {
			fmt.Println("key not found")
			return nil
		}
		fmt.Printf("value: %s\n", string(resp.Value))
		return nil
	},
}

var delCmd = &cobra.Command{
	Use:   "del <key>",
	Short: "delete a key from a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		c, err := client.NewClient(addr)
		if err != nil {
			return fmt.Errorf("connect %s: %w", addr, err)
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		resp, err := c.Delete(ctx, args[0])
		if err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		if !resp.Existed {
			fmt.Println("key not found")
			return nil
		}
		fmt.Println("deleted")
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "force a bidirectional diff exchange between two nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		if from == "" || to == "" {
			return fmt.Errorf("both --from and --to are required")
		}

		fromClient, err := client.NewClient(from)
		if err != nil {
			return fmt.Errorf("connect %s: %w", from, err)
		}
		defer fromClient.Close()

		toClient, err := client.NewClient(to)
		if err != nil {
			return fmt.Errorf("connect %s: %w", to, err)
		}
		defer toClient.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		if err := relayDiff(ctx, fromClient, toClient); err != nil {
			return fmt.Errorf("sync %s -> %s: %w", from, to, err)
		}
		if err := relayDiff(ctx, toClient, fromClient); err != nil {
			return fmt.Errorf("sync %s -> %s: %w", to, from, err)
		}
		fmt.Printf("sync complete: %s <-> %s\n", from, to)
		return nil
	},
}

// relayDiff pulls what dst is missing from src and pushes it into dst,
// mirroring one direction of internal/reconcile.Engine.reconcileWithPeer
// but driven remotely by the CLI instead of by a node's own local replica.
func relayDiff(ctx context.Context, src, dst *client.Client) error {
	req, err := dst.RequestDiff(ctx)
	if err != nil {
		return fmt.Errorf("request_diff: %w", err)
	}
	d, err := src.BuildDiff(ctx, req)
	if err != nil {
		return fmt.Errorf("build_diff: %w", err)
	}
	if _, err := dst.IntegrateDiff(ctx, d); err != nil {
		return fmt.Errorf("integrate_diff: %w", err)
	}
	return nil
}

var watchCmd = &cobra.Command{
	Use:   "watch <key>",
	Short: "poll a key and print it whenever its value changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		interval, _ := cmd.Flags().GetDuration("interval")
		key := args[0]

		c, err := client.NewClient(addr)
		if err != nil {
			return fmt.Errorf("connect %s: %w", addr, err)
		}
		defer c.Close()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last []byte
		var seen bool
		for {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			resp, err := c.Get(ctx, key)
			cancel()
			if err != nil {
				fmt.Fprintf(os.Stderr, "watch: get failed: %v\n", err)
			} else if resp.Found && (!seen || !bytes.Equal(resp.Value, last)) {
				fmt.Printf("%s = %s\n", key, string(resp.Value))
				last, seen = resp.Value, true
			}

			select {
			case <-ticker.C:
			case <-cmd.Context().Done():
				return nil
			}
		}
	},
}

func init() {
	for _, c := range []*cobra.Command{putCmd, getCmd, delCmd, watchCmd} {
		c.Flags().String("addr", "localhost:8080", "node address")
	}
	syncCmd.Flags().String("from", "", "source node address")
	syncCmd.Flags().String("to", "", "destination node address")
	watchCmd.Flags().Duration("interval", time.Second, "poll interval")
}
