package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alucardeht/membank/internal/bank"
	"github.com/alucardeht/membank/internal/cache"
	"github.com/alucardeht/membank/internal/config"
	"github.com/alucardeht/membank/internal/daemon"
	"github.com/alucardeht/membank/internal/logger"
	"github.com/alucardeht/membank/internal/mcp"
	"github.com/alucardeht/membank/internal/store"
	"github.com/alucardeht/membank/internal/tools"
	"github.com/alucardeht/membank/internal/tools/memorytools"
)

var noWatch bool

func init() {
	cmd := &cobra.Command{
		Use:   "serve <project-id> <workspace-path>",
		Short: "Run the MCP server for one project",
		Long: "Serve newline-delimited JSON-RPC 2.0 on stdin/stdout and on the project's " +
			"unix socket. Imports the workspace's agent memory banks at startup and watches " +
			"them for changes.",
		Args: cobra.ExactArgs(2),
		Run:  runServe,
	}

	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Disable memory-bank file watching")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	projectID, workspace := args[0], args[1]

	cfg := config.Load(projectID, workspace)

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(cfg.LogLevel)
	logger.Init(logCfg)
	log := logger.ForComponent("serve")

	if err := cfg.EnsureDirectories(); err != nil {
		exitErr("prepare data dir", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	st := store.New(cfg.ProjectsDir)
	defer st.Close()

	if err := st.InitProject(ctx, projectID); err != nil {
		exitErr("init project", err)
	}

	engine := bank.NewEngine(st, projectID, workspace)
	if n, err := engine.ImportAll(ctx); err != nil {
		log.Warn("initial import incomplete", "error", err)
	} else {
		log.Info("imported memory banks", "records", n)
	}

	if cfg.Watcher.Enabled && !noWatch {
		if err := engine.StartWatching(ctx, cfg.Watcher.DebounceWindow, cfg.Watcher.IgnorePatterns); err != nil {
			log.Warn("watcher unavailable", "error", err)
		}
	}
	defer engine.StopWatching()

	registry := tools.NewRegistry()
	deps := memorytools.Deps{
		Store:     st,
		Cache:     cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL),
		Bank:      engine,
		ProjectID: projectID,
	}
	for _, tool := range memorytools.GetTools(deps) {
		if err := registry.Register(tool); err != nil {
			exitErr("register tools", err)
		}
	}

	server := mcp.NewServer(registry, projectID)

	sock := daemon.NewListener(cfg.SocketPath, server)
	if err := sock.Start(); err != nil {
		exitErr("start socket listener", err)
	}
	defer sock.Shutdown()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		sock.Shutdown()
		engine.StopWatching()
		st.Close()
		os.Exit(0)
	}()

	log.Info("server ready", "project", projectID, "workspace", workspace)

	// Blocks until stdin closes, the one genuinely fatal condition.
	if err := server.ProcessStream(os.Stdin, os.Stdout); err != nil {
		log.Error("stream ended", "error", err)
	}
}
