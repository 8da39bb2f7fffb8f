package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/hostwatch/internal/config"
	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/journal"
	"codeberg.org/mutker/hostwatch/internal/logger"
	"codeberg.org/mutker/hostwatch/internal/monitor"
	"codeberg.org/mutker/hostwatch/internal/notify"
	"codeberg.org/mutker/hostwatch/internal/pid"
	"codeberg.org/mutker/hostwatch/internal/scheduler"
	"codeberg.org/mutker/hostwatch/internal/sensors"
	"codeberg.org/mutker/hostwatch/internal/state"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.Init(level, logger.IsService())
	logger.Debug().
		Str("config_file", cfg.ConfigFile).
		Str("state_file", cfg.StateFile).
		Msg("Config loaded")

	if !cfg.DryRun {
		if err := cfg.ValidateTransport(); err != nil {
			logError(err, "Transport is not configured")
			return 1
		}
	}

	pidFile, err := pid.Write(pid.PathFor(cfg.StateFile))
	if err != nil {
		logError(err, "Failed to write PID file")
		return 1
	}
	defer func() {
		if err := pidFile.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := serve(ctx, cfg); err != nil {
		logError(err, "Error in main loop")
		return 1
	}

	logger.Info().Msg("Exiting...")

	return 0
}

func serve(ctx context.Context, cfg *config.Config) error {
	store, err := state.NewFileStore(cfg.StateFile)
	if err != nil {
		return err
	}
	initial := store.Load()
	logger.Info().
		Bool("temp_high", initial.TempHigh).
		Bool("cpu_high", initial.CPUHigh).
		Bool("power_high", initial.PowerHigh).
		Bool("baseline", initial.BaselinePower != nil).
		Msg("Monitor state loaded")

	source, err := sensors.Probe(ctx, cfg.SensorOptions())
	if err != nil {
		return err
	}
	defer closeWithLog(source.Close, "Failed to close sensors")
	logger.Info().Str("power_source", source.PowerSource()).Msg("Sensors ready")

	recorder, err := journal.New(cfg.JournalConfig(), logger.Default())
	if err != nil {
		return err
	}
	defer closeWithLog(recorder.Close, "Failed to close journal")
	logLastTransition(ctx, recorder)

	notifier, commands, err := openNotifier(ctx, cfg)
	if err != nil {
		return err
	}
	if closer, ok := notifier.(interface{ Close() error }); ok {
		defer closeWithLog(closer.Close, "Failed to close transport")
	}

	sched, err := scheduler.New(
		scheduler.Config{
			Interval:    cfg.Interval(),
			ReadTimeout: cfg.ReadTimeout(),
			Host:        cfg.HostLabel,
		},
		scheduler.Deps{
			Engine:   monitor.NewEngine(cfg.Thresholds()),
			Source:   source,
			Notifier: notifier,
			Store:    store,
			Journal:  recorder,
		},
		initial,
	)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		return commandLoop(gctx, sched, commands)
	})

	return g.Wait()
}

// openNotifier logs in to Discord, or returns the log-only notifier in
// dry-run mode. The command channel is nil when there is no transport.
func openNotifier(ctx context.Context, cfg *config.Config) (notify.Notifier, <-chan notify.Command, error) {
	if cfg.DryRun {
		logger.Info().Msg("Dry run: notifications are logged only")
		return notify.LogNotifier{}, nil, nil
	}

	discord, err := notify.NewDiscord(notify.DiscordConfig{
		Token:         cfg.Token,
		Recipient:     cfg.Recipient,
		CommandPrefix: cfg.CommandPrefix,
		Host:          cfg.HostLabel,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := discord.Open(ctx); err != nil {
		return nil, nil, err
	}

	return discord, discord.Commands(), nil
}

func commandLoop(ctx context.Context, sched *scheduler.Scheduler, commands <-chan notify.Command) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-commands:
			if !ok {
				return nil
			}
			if cmd.Name != notify.CommandStatus {
				continue
			}
			logger.Info().Msg("Status requested")
			if err := sched.Status(ctx); err != nil {
				logError(err, "Failed to answer status request")
			}
		}
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func logLastTransition(ctx context.Context, recorder journal.Recorder) {
	entries, err := recorder.Recent(ctx, 1)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read journal")
		return
	}
	if len(entries) == 0 {
		return
	}

	last := entries[0]
	logger.Info().
		Time("at", last.Timestamp).
		Str("condition", last.Condition).
		Str("transition", last.Transition).
		Float64("value", last.Value).
		Msg("Last journaled transition")
}

func closeWithLog(closeFn func() error, msg string) {
	if err := closeFn(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

func logError(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.ErrorWithCode(appErr).Msg(msg)
		return
	}
	logger.Error().Err(err).Msg(msg)
}
