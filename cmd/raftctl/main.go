package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/raftcore/examples/kvfsm"
	"github.com/cuemby/raftcore/pkg/adminapi"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "raftctl",
	Short: "raftctl drives a raftd node's admin API",
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(addServerCmd)
	rootCmd.AddCommand(removeServerCmd)
	rootCmd.AddCommand(promoteCmd)

	for _, cmd := range []*cobra.Command{statusCmd, serversCmd, applyCmd, addServerCmd, removeServerCmd, promoteCmd} {
		cmd.Flags().String("server", "127.0.0.1:8080", "raftd admin API address")
	}

	addServerCmd.Flags().String("address", "", "Raft traffic address of the new server (required)")
	addServerCmd.MarkFlagRequired("address")
}

// dial connects to a raftd node's admin API. Production deployments would
// layer TLS credentials here; insecure.NewCredentials matches what the
// retrieval pack's own bufconn-based tests use for the same RPCs.
func dial(cmd *cobra.Command) (*adminapi.Client, func(), error) {
	addr, _ := cmd.Flags().GetString("server")
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return adminapi.NewClient(conn), func() { conn.Close() }, nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a node's role, term, and commit/apply progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, closeFn, err := dial(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		status, err := client.Status(ctx)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}

		fmt.Printf("ID:           %s\n", status.ID)
		fmt.Printf("Role:         %s\n", status.Role)
		fmt.Printf("Term:         %d\n", status.CurrentTerm)
		fmt.Printf("Commit index: %d\n", status.CommitIndex)
		fmt.Printf("Last applied: %d\n", status.LastApplied)
		if status.LeaderID != "" {
			fmt.Printf("Leader hint:  %s (%s)\n", status.LeaderID, status.LeaderAddr)
		}
		return nil
	},
}

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List the current cluster configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, closeFn, err := dial(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		servers, err := client.Servers(ctx)
		if err != nil {
			return fmt.Errorf("servers: %w", err)
		}
		for _, s := range servers.Servers {
			voting := "voter"
			if !s.Voting {
				voting = "non-voter"
			}
			fmt.Printf("%-20s %-20s %s\n", s.ID, s.Address, voting)
		}
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply <key> <value>",
	Short: "Apply a set command to the example KV state machine",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, closeFn, err := dial(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		resp, err := client.Apply(ctx, requestID(), kvfsm.SetPayload(args[0], args[1]))
		if err != nil {
			return fmt.Errorf("apply: %w", err)
		}
		if resp.Error != "" {
			return fmt.Errorf("apply rejected: %s", resp.Error)
		}
		fmt.Println("Applied.")
		return nil
	},
}

var addServerCmd = &cobra.Command{
	Use:   "add-server <id>",
	Short: "Add a new non-voting server to the cluster (one at a time)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, closeFn, err := dial(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		address, _ := cmd.Flags().GetString("address")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ack, err := client.AddServer(ctx, args[0], address)
		if err != nil {
			return fmt.Errorf("add-server: %w", err)
		}
		if ack.Error != "" {
			return fmt.Errorf("add-server rejected: %s", ack.Error)
		}
		fmt.Printf("Server %s added (catching up as a non-voter).\n", args[0])
		return nil
	},
}

var removeServerCmd = &cobra.Command{
	Use:   "remove-server <id>",
	Short: "Remove a server from the cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, closeFn, err := dial(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ack, err := client.RemoveServer(ctx, args[0])
		if err != nil {
			return fmt.Errorf("remove-server: %w", err)
		}
		if ack.Error != "" {
			return fmt.Errorf("remove-server rejected: %s", ack.Error)
		}
		fmt.Printf("Server %s removed.\n", args[0])
		return nil
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote <id>",
	Short: "Promote a caught-up non-voter to a full voter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, closeFn, err := dial(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ack, err := client.Promote(ctx, args[0])
		if err != nil {
			return fmt.Errorf("promote: %w", err)
		}
		if ack.Error != "" {
			return fmt.Errorf("promote rejected: %s", ack.Error)
		}
		fmt.Printf("Server %s promoted to voter.\n", args[0])
		return nil
	},
}

// requestID gives each CLI apply invocation a distinct correlation id for
// the RequestID field adminapi.ApplyRequest carries.
func requestID() string {
	return uuid.NewString()
}
