package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/reamp/internal/audio"
	"github.com/linuxmatters/reamp/internal/cli"
	"github.com/linuxmatters/reamp/internal/config"
	"github.com/linuxmatters/reamp/internal/model"
	"github.com/linuxmatters/reamp/internal/pipeline"
	"github.com/linuxmatters/reamp/internal/ui"
)

// version is set via ldflags at build time
// Local dev builds: "dev"
// Release builds: git tag (e.g. "v0.1.0")
var version = "dev"

var CLI struct {
	Model  string `arg:"" name:"model" help:"Amp model (.nam) or cabinet impulse response (.wav)" optional:""`
	Input  string `arg:"" name:"input" help:"Dry input audio (.wav, .flac, .mp3, .ogg)" optional:""`
	Output string `arg:"" name:"output" help:"Output WAV file" optional:""`

	Threads    *int `help:"Worker count, 0 for one per CPU" group:"Pipeline"`
	BufferSize *int `help:"Frames per model invocation" name:"buffer-size" placeholder:"frames" group:"Pipeline"`
	MinChunks  *int `help:"Minimum buffers per worker" name:"min-chunks" group:"Pipeline"`
	Warmup     *int `help:"Frames each worker pre-rolls before its partition" placeholder:"frames" group:"Pipeline"`

	BitDepth *int `help:"Output bit depth: 16, 24 or 32 (0 keeps the input depth)" name:"bit-depth" group:"Output"`
	Mono     bool `help:"Downmix output to mono" group:"Output"`

	NoProgress bool   `help:"Disable the progress UI and log to stderr" name:"no-progress" group:"Logging"`
	LogLevel   string `help:"Log level: debug, info, warn or error" name:"log-level" placeholder:"level" group:"Logging"`
	LogFormat  string `help:"Log format: text or json" name:"log-format" placeholder:"format" group:"Logging"`

	Config  string `help:"YAML configuration file" type:"existingfile" placeholder:"file"`
	Version bool   `help:"Show version information"`
}

// helpDefaults are the built-in values a flag falls back to when neither the
// command line nor the config file sets it
var helpDefaults = map[string]string{
	"threads":     "one per CPU",
	"buffer-size": strconv.Itoa(config.DefaultBufferSize),
	"min-chunks":  strconv.Itoa(config.DefaultMinChunksPerThread),
	"warmup":      strconv.Itoa(config.DefaultWarmupFrames),
	"bit-depth":   "input depth",
	"log-level":   config.DefaultLogLevel,
	"log-format":  config.DefaultLogFormat,
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("reamp"),
		kong.Description("Run a dry recording through an amp model or impulse response."),
		kong.Vars{"version": version},
		kong.UsageOnError(),
		kong.Help(cli.StyledHelpPrinter(helpDefaults)),
	)
	_ = ctx

	// Handle version flag
	if CLI.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	if CLI.Model == "" || CLI.Input == "" || CLI.Output == "" {
		cli.PrintError("<model>, <input> and <output> are required")
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	// The progress UI owns the terminal, so logs are only shown without it
	var logOutput io.Writer = io.Discard
	if CLI.NoProgress {
		logOutput = os.Stderr
	}
	logger, err := cli.NewLogger(logOutput, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := reamp(runCtx, cfg, logger); err != nil {
		stop()
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if CLI.Config != "" {
		loaded, err := config.Load(CLI.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	overrides := config.Overrides{
		BufferSize:         CLI.BufferSize,
		Threads:            CLI.Threads,
		MinChunksPerThread: CLI.MinChunks,
		WarmupFrames:       CLI.Warmup,
		BitDepth:           CLI.BitDepth,
		LogLevel:           CLI.LogLevel,
		LogFormat:          CLI.LogFormat,
	}
	if CLI.Mono {
		overrides.Mono = &CLI.Mono
	}
	cfg.Merge(overrides)
	return cfg, nil
}

// outcome is what a finished run reports back to main
type outcome struct {
	result *pipeline.Result
	levels audio.Levels
	err    error
}

type runFunc func(ctx context.Context, opts ...pipeline.Option) outcome

func reamp(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	startTime := time.Now()
	pcfg := pipeline.FromFile(cfg)
	hardware := runtime.NumCPU()

	// Validate and plan before touching the output file
	desc, err := model.Load(CLI.Model)
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}

	src, err := audio.Open(CLI.Input)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	info := src.Info()

	if err := desc.CheckSampleRate(info.SampleRate); err != nil {
		logger.Warn("reamp: model and input rates differ", "error", err)
		if !CLI.NoProgress {
			cli.PrintWarning(err.Error())
		}
	}

	ranges, err := pipeline.Plan(info.Frames, pcfg, hardware)
	if err != nil {
		return err
	}

	logger.Info("reamp: starting",
		"model", CLI.Model,
		"model_kind", desc.Kind,
		"model_sample_rate", desc.SampleRate,
		"input", CLI.Input,
		"output", CLI.Output,
		"format", info.Format,
		"sample_rate", info.SampleRate,
		"channels", info.Channels,
		"frames", info.Frames,
		"duration", info.Duration())

	sink, err := audio.NewWAVWriter(CLI.Output, info, audio.WriterOptions{
		BitDepth: cfg.Output.BitDepth,
		Mono:     cfg.Output.Mono,
	})
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithHardwareThreads(hardware),
	}

	run := func(ctx context.Context, opts ...pipeline.Option) outcome {
		result, err := pipeline.New(pcfg, desc.New, opts...).Run(ctx, src, sink)
		closeErr := sink.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("closing output: %w", closeErr)
		}
		return outcome{result: result, levels: sink.Levels(), err: err}
	}

	var out outcome
	if CLI.NoProgress {
		out = run(ctx, opts...)
	} else {
		out = runWithProgress(ctx, info, len(ranges), run, opts)
	}

	if out.err != nil {
		// A partial output file is not a valid result
		if rmErr := os.Remove(CLI.Output); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn("reamp: failed to remove partial output", "error", rmErr)
		}
		return out.err
	}

	for _, w := range out.result.Warnings {
		cli.PrintWarning(w.Error())
	}

	if CLI.NoProgress {
		printSummary(out, info, time.Since(startTime))
		cli.PrintSuccess(fmt.Sprintf("Wrote %s", CLI.Output))
	}
	return nil
}

// progressProgram is the part of *tea.Program a supervised run drives
type progressProgram interface {
	Run() (tea.Model, error)
	Send(msg tea.Msg)
}

// superviseRun runs work in a goroutine while the UI program owns the
// terminal. The UI exiting first (ctrl+c) cancels work; the returned outcome
// is only read once work has returned.
func superviseRun(ctx context.Context, p progressProgram, work func(context.Context) outcome) outcome {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out outcome
	done := make(chan struct{})
	go func() {
		defer close(done)
		out = work(ctx)
	}()

	if _, err := p.Run(); err != nil {
		cli.PrintError(fmt.Sprintf("running UI: %v", err))
	}

	cancel()
	<-done
	return out
}

// runWithProgress runs the pipeline while Bubbletea renders per-worker progress
func runWithProgress(ctx context.Context, info audio.Info, workers int, run runFunc, opts []pipeline.Option) outcome {
	progressModel := ui.NewModel()
	p := tea.NewProgram(progressModel)

	out := superviseRun(ctx, p, func(ctx context.Context) outcome {
		startTime := time.Now()

		p.Send(ui.RunStarted{
			Input:      CLI.Input,
			Model:      CLI.Model,
			Workers:    workers,
			Frames:     info.Frames,
			SampleRate: info.SampleRate,
			Channels:   info.Channels,
		})

		out := run(ctx, append(opts, pipeline.WithProgress(func(pr pipeline.Progress) {
			p.Send(ui.WorkerProgress{Worker: pr.Worker, Done: pr.Done, Total: pr.Total})
		}))...)

		if out.err != nil {
			p.Send(ui.RunFailed{Err: out.err})
			return out
		}

		var size int64
		if stat, err := os.Stat(CLI.Output); err == nil {
			size = stat.Size()
		}
		p.Send(ui.RunComplete{
			OutputFile:    CLI.Output,
			FramesWritten: out.result.FramesWritten,
			FileSize:      size,
			Warnings:      len(out.result.Warnings),
			PeakDB:        out.levels.PeakDB(),
			RMSDB:         out.levels.RMSDB(),
			Clipped:       out.levels.Clipped,
			TotalTime:     time.Since(startTime),
		})
		return out
	})

	if out.err == nil {
		fmt.Print(progressModel.CompletionSummary())
	}
	return out
}

func printSummary(out outcome, info audio.Info, elapsed time.Duration) {
	var size int64
	if stat, err := os.Stat(CLI.Output); err == nil {
		size = stat.Size()
	}

	var speed float64
	if elapsed > 0 && info.SampleRate > 0 {
		audioDuration := float64(out.result.FramesWritten) / float64(info.SampleRate)
		speed = audioDuration / elapsed.Seconds()
	}

	cli.PrintSummary(cli.Summary{
		Duration: cli.FormatDuration(elapsed),
		Speed:    cli.FormatSpeed(speed),
		Size:     cli.FormatBytes(size),
		Frames:   fmt.Sprintf("%d", out.result.FramesWritten),
		Workers:  fmt.Sprintf("%d", len(out.result.Ranges)),
		Peak:     cli.FormatDB(out.levels.PeakDB()),
		RMS:      cli.FormatDB(out.levels.RMSDB()),
		Clipped:  fmt.Sprintf("%d samples", out.levels.Clipped),
	})
}
