package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/raftcore/examples/kvfsm"
	"github.com/cuemby/raftcore/pkg/adminapi"
	"github.com/cuemby/raftcore/pkg/config"
	rlog "github.com/cuemby/raftcore/pkg/log"
	"github.com/cuemby/raftcore/pkg/metrics"
	"github.com/cuemby/raftcore/pkg/node"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "raftd",
	Short:   "raftd runs one node of a raftcore cluster",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("raftd version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to a raftd YAML config file")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(serveCmd)

	initCmd.Flags().String("node-id", "n1", "Unique node ID")
	initCmd.Flags().String("bind-addr", "127.0.0.1:7946", "Address for Raft traffic")
	initCmd.Flags().String("api-addr", "127.0.0.1:8080", "Address for the admin gRPC API")
	initCmd.Flags().String("data-dir", "./raftd-data", "Data directory for node state")

	joinCmd.Flags().String("node-id", "", "Unique node ID (required)")
	joinCmd.Flags().String("bind-addr", "127.0.0.1:7947", "Address for Raft traffic")
	joinCmd.Flags().String("api-addr", "127.0.0.1:8081", "Address for the admin gRPC API")
	joinCmd.Flags().String("data-dir", "./raftd-data", "Data directory for node state")
	joinCmd.Flags().String("leader", "", "Admin API address of an existing cluster member (required)")
	joinCmd.MarkFlagRequired("node-id")
	joinCmd.MarkFlagRequired("leader")

	serveCmd.Flags().String("node-id", "", "Unique node ID (overrides config file)")
	serveCmd.Flags().String("bind-addr", "", "Address for Raft traffic (overrides config file)")
	serveCmd.Flags().String("api-addr", "", "Address for the admin gRPC API (overrides config file)")
	serveCmd.Flags().String("data-dir", "", "Data directory for node state (overrides config file)")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the Prometheus /metrics and health endpoints")
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	rlog.Init(rlog.Config{
		Level:      rlog.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// loadConfig applies cmd's --config flag, if any, then overlays the
// command's own flags, following the same file-then-flags precedence
// pkg/config.Load documents.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	return config.Load(path, cmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a new single-node cluster config and bootstrap its data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node-id")
		bindAddr, _ := cmd.Flags().GetString("bind-addr")
		apiAddr, _ := cmd.Flags().GetString("api-addr")
		dataDir, _ := cmd.Flags().GetString("data-dir")

		cfg := config.Default()
		cfg.NodeID = nodeID
		cfg.BindAddr = bindAddr
		cfg.APIAddr = apiAddr
		cfg.DataDir = dataDir
		cfg.Servers = []config.ServerConfig{
			{ID: nodeID, Address: bindAddr, Voting: true},
		}

		fsm := kvfsm.New()
		n, err := node.New(cfg, fsm, rlog.Logger)
		if err != nil {
			return fmt.Errorf("initializing node: %w", err)
		}
		defer n.Close()

		if err := n.Bootstrap(); err != nil {
			return fmt.Errorf("bootstrapping: %w", err)
		}

		path, _ := cmd.Root().PersistentFlags().GetString("config")
		if path == "" {
			path = cfg.DataDir + "/raftd.yaml"
		}
		if err := config.Save(path, cfg); err != nil {
			return err
		}

		fmt.Printf("Cluster bootstrapped. Node ID: %s\n", cfg.NodeID)
		fmt.Printf("Config written to %s\n", path)
		fmt.Printf("Start it with: raftd serve --config %s\n", path)
		return nil
	},
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Register this node with an existing cluster and write its config",
	Long: `join contacts an existing cluster member's admin API and asks it to
add this node as a new (initially non-voting) server, then writes a config
file for it. The node does not bootstrap its own storage: it starts empty
and catches up via AppendEntries/InstallSnapshot once its leader starts
replicating to it.

Run "raftd serve --config <path>" afterwards to actually start the node.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node-id")
		bindAddr, _ := cmd.Flags().GetString("bind-addr")
		apiAddr, _ := cmd.Flags().GetString("api-addr")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		leaderAPIAddr, _ := cmd.Flags().GetString("leader")

		conn, err := grpc.NewClient(leaderAPIAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("dialing %s: %w", leaderAPIAddr, err)
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ack, err := adminapi.NewClient(conn).AddServer(ctx, nodeID, bindAddr)
		if err != nil {
			return fmt.Errorf("add-server: %w", err)
		}
		if ack.Error != "" {
			return fmt.Errorf("add-server rejected: %s", ack.Error)
		}

		cfg := config.Default()
		cfg.NodeID = nodeID
		cfg.BindAddr = bindAddr
		cfg.APIAddr = apiAddr
		cfg.DataDir = dataDir

		path, _ := cmd.Root().PersistentFlags().GetString("config")
		if path == "" {
			path = cfg.DataDir + "/raftd.yaml"
		}
		if err := config.Save(path, cfg); err != nil {
			return err
		}

		fmt.Printf("Registered with %s as %s.\n", leaderAPIAddr, nodeID)
		fmt.Printf("Config written to %s\n", path)
		fmt.Printf("Start it with: raftd serve --config %s\n", path)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run this node, serving Raft traffic and the admin gRPC API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		fsm := kvfsm.New()
		n, err := node.New(cfg, fsm, rlog.Logger)
		if err != nil {
			return fmt.Errorf("initializing node: %w", err)
		}
		defer n.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		runDone := make(chan struct{})
		go func() {
			if err := n.Run(ctx); err != nil {
				rlog.Logger.Error().Err(err).Msg("node run loop exited")
			}
			close(runDone)
		}()

		svc := adminapi.NewService(n.Engine(), n.Submit, rlog.Logger)
		svc.OnAddServer(n.RegisterPeer)
		apiAddr, _ := cmd.Flags().GetString("api-addr")
		if apiAddr == "" {
			apiAddr = cfg.APIAddr
		}
		lis, err := net.Listen("tcp", apiAddr)
		if err != nil {
			cancel()
			<-runDone
			return fmt.Errorf("listening on %s: %w", apiAddr, err)
		}
		grpcServer := adminapi.NewGRPCServer(svc)
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				rlog.Logger.Warn().Err(err).Msg("admin gRPC server stopped")
			}
		}()
		fmt.Printf("Admin API listening on %s\n", apiAddr)

		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		go serveMetrics(metricsAddr)
		fmt.Printf("Metrics endpoint: http://%s/metrics\n", metricsAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		fmt.Println("Shutting down...")

		grpcServer.GracefulStop()
		cancel()
		<-runDone

		fmt.Println("Shutdown complete")
		return nil
	},
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		rlog.Logger.Warn().Err(err).Msg("metrics server stopped")
	}
}

