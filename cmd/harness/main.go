package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"github.com/danielpatrickdp/hormone-harness/internal/codec"
	"github.com/danielpatrickdp/hormone-harness/internal/config"
	"github.com/danielpatrickdp/hormone-harness/internal/controller"
	"github.com/danielpatrickdp/hormone-harness/internal/env"
	"github.com/danielpatrickdp/hormone-harness/internal/episode"
	"github.com/danielpatrickdp/hormone-harness/internal/fault"
	"github.com/danielpatrickdp/hormone-harness/internal/logging"
	"github.com/danielpatrickdp/hormone-harness/internal/model"
	"github.com/danielpatrickdp/hormone-harness/internal/record"
	"github.com/danielpatrickdp/hormone-harness/internal/schema"
	"github.com/danielpatrickdp/hormone-harness/internal/signals"
	"github.com/danielpatrickdp/hormone-harness/internal/store"
	"github.com/danielpatrickdp/hormone-harness/internal/stream"
)

// #region main
func main() {
	os.Exit(realMain(os.Args[1:], os.Stderr))
}

// realMain returns the exit code so deferred cleanup runs before os.Exit.
func realMain(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("harness", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to harness YAML config")
	serveModel := fs.String("serve-model", "", "serve the dummy model over gRPC on addr instead of running episodes")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}

	logger, closer, err := logging.New(cfg.Log, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 2
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serveModel != "" {
		err = runModelServer(ctx, *serveModel, logger)
	} else {
		err = run(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error("harness stopped", "error", err, "class", fault.ClassOf(err))
		return exitCode(err)
	}
	return 0
}

// exitCode maps error classes to process exit codes.
func exitCode(err error) int {
	switch {
	case fault.Is(err, fault.ClassConfiguration):
		return 2
	case fault.Is(err, fault.ClassCancelled):
		return 130
	}
	return 1
}

// #endregion main

// #region run
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	sinks, closeSinks, err := openSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	deps, closeModel, err := buildDeps(cfg, sinks, logger)
	if err != nil {
		return err
	}
	defer closeModel.Close()

	runner, err := episode.NewRunner(cfg.Run.Options, deps)
	if err != nil {
		return err
	}

	logger.Info("grid starting",
		"benchmark", cfg.Run.Benchmark, "tasks", len(cfg.Run.Tasks), "seeds", len(cfg.Run.Seeds),
		"parallel", cfg.Run.Parallel, "out", cfg.Run.OutDir)

	pairs, err := runner.RunGrid(ctx, episode.Grid{
		Tasks:    cfg.Run.Tasks,
		Seeds:    cfg.Run.Seeds,
		Parallel: cfg.Run.Parallel,
	})
	printPairs(pairs)
	return err
}

func buildDeps(cfg *config.Config, sinks []record.Sink, logger *slog.Logger) (episode.Deps, io.Closer, error) {
	controllers, err := controller.NewFactory(cfg.Controller)
	if err != nil {
		return episode.Deps{}, nil, err
	}
	producer, err := signals.NewProducer(cfg.Signals)
	if err != nil {
		return episode.Deps{}, nil, err
	}
	guard, err := schema.NewGuard(cfg.Schema, logger)
	if err != nil {
		return episode.Deps{}, nil, err
	}

	var (
		models model.Factory
		closer io.Closer = nopCloser{}
	)
	switch cfg.Model.Backend {
	case config.BackendGRPC:
		client, err := codec.NewClient(cfg.Model.Addr)
		if err != nil {
			return episode.Deps{}, nil, fault.New(fault.ClassEnvironment, "harness", err)
		}
		models = func() model.Model { return client }
		closer = client
	default:
		models = func() model.Model { return model.NewDummy() }
	}

	return episode.Deps{
		Controllers: controllers,
		Guard:       guard,
		Signals:     producer,
		Models:      models,
		Envs:        func() env.Environment { return env.NewToy() },
		Sinks:       sinks,
		Logger:      logger,
	}, closer, nil
}

// openSinks attaches the SQLite index and the Redis stream when configured.
func openSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]record.Sink, func(), error) {
	var (
		sinks   []record.Sink
		closers []io.Closer
	)
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	if cfg.Store.Path != "" {
		st, err := store.NewStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, fault.New(fault.ClassEnvironment, "harness", err)
		}
		sinks = append(sinks, st)
		closers = append(closers, st)
		logger.Info("indexing runs", "db", cfg.Store.Path)
	}
	if cfg.Stream.URL != "" {
		client, err := stream.Dial(ctx, cfg.Stream)
		if err != nil {
			closeAll()
			return nil, nil, fault.New(fault.ClassEnvironment, "harness", err)
		}
		sinks = append(sinks, stream.NewPublisher(client, cfg.Stream))
		closers = append(closers, client)
		logger.Info("streaming steps", "stream", cfg.Stream.Stream)
	}
	return sinks, closeAll, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// #endregion run

// #region serve-model
func runModelServer(ctx context.Context, addr string, logger *slog.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fault.New(fault.ClassEnvironment, "harness", fmt.Errorf("listen %s: %w", addr, err))
	}
	s := grpc.NewServer()
	codec.Register(s, func() model.Model { return model.NewDummy() })

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()
	logger.Info("model server listening", "addr", lis.Addr().String())
	if err := s.Serve(lis); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// #endregion serve-model

// #region output
func printPairs(pairs []episode.Pair) {
	if len(pairs) == 0 {
		return
	}
	fmt.Printf("%-6s  %-6s  %-10s  %6s  %7s  %-10s  %6s  %7s\n",
		"Task", "Seed", "OFF", "Steps", "Tokens", "ON", "Steps", "Tokens")
	fmt.Printf("%-6s+-%-6s+-%-10s+-%6s+-%7s+-%-10s+-%6s+-%7s\n",
		"------", "------", "----------", "------", "-------", "----------", "------", "-------")
	for _, p := range pairs {
		off, on := p.Off, p.On
		fmt.Printf("%-6d  %-6d  %-10s  %6d  %7d  %-10s  %6d  %7d\n",
			off.Identity.TaskID, off.Identity.Seed,
			off.Summary.Status, off.Summary.Steps, off.Summary.TotalTokens,
			on.Summary.Status, on.Summary.Steps, on.Summary.TotalTokens)
	}
}

// #endregion output
