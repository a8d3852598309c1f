package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/james-see/midiplug/pkg/api"
	"github.com/james-see/midiplug/pkg/capture"
	"github.com/james-see/midiplug/pkg/device"
	"github.com/james-see/midiplug/pkg/input"
	"github.com/james-see/midiplug/pkg/output"
	"github.com/james-see/midiplug/pkg/plug"
	"github.com/james-see/midiplug/pkg/tui"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print events received on an input port",
	Args:  cobra.NoArgs,
	RunE:  runMonitor,
}

var recordCmd = &cobra.Command{
	Use:   "record <output.mid>",
	Short: "Record an input port to a Standard MIDI File until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecord,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the live terminal monitor",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Starts the REST API. When an input port is configured its events are served at /api/v1/events.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// openInput opens the configured input port
func openInput(ctx context.Context, log *slog.Logger, opts ...input.Option) (*input.Input, error) {
	if cfg.Input.Port == "" {
		return nil, withPortNames(ctx, errors.New("no input port: use --in or set input.port in the config"), device.InputNames)
	}

	port, err := device.FindInput(ctx, cfg.Input.Port)
	if err != nil {
		return nil, withPortNames(ctx, err, device.InputNames)
	}

	opts = append([]input.Option{
		input.WithLogger(log),
		input.WithMaxSysexSize(cfg.Input.MaxSysexSize),
		input.WithSysexBufferSize(cfg.Input.SysexBufferSize),
	}, opts...)
	return input.Open(port, opts...)
}

// withPortNames appends the available port names to a lookup failure
func withPortNames(ctx context.Context, err error, list func(context.Context) ([]string, error)) error {
	if errors.Is(err, device.ErrTimeout) {
		return err
	}
	names, lerr := list(ctx)
	if lerr != nil || len(names) == 0 {
		return err
	}
	return fmt.Errorf("%w (available: %s)", err, strings.Join(names, ", "))
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	in, err := openInput(ctx, logger)
	if err != nil {
		return err
	}
	defer in.CloseDevice()

	kind, err := cfg.Input.KindFilter()
	if err != nil {
		return err
	}
	in.Registry().Register(plug.EventFunc(printEvent), kind, cfg.Input.Channel)

	if cfg.Output.ThruPort != "" {
		port, err := device.FindOutput(ctx, cfg.Output.ThruPort)
		if err != nil {
			return withPortNames(ctx, err, device.OutputNames)
		}
		out, err := output.Open(port, output.WithLogger(logger))
		if err != nil {
			return err
		}
		defer out.Close()

		in.Registry().Register(out, kind, cfg.Input.Channel)
		fmt.Printf("Forwarding to %s\n", out.Name())
	}

	fmt.Printf("Monitoring %s (ctrl+c to stop)\n", in.Name())
	<-ctx.Done()

	stats := in.Stats()
	fmt.Printf("\n%d events, %d skipped, %d sysex dropped, %d handler faults\n",
		stats.Dispatched, stats.Skipped, stats.SysexDropped, stats.Registry.Failed+stats.Registry.Panicked)
	return nil
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	in, err := openInput(ctx, logger)
	if err != nil {
		return err
	}
	defer in.CloseDevice()

	rec := capture.NewRecorder(
		capture.WithResolution(cfg.Record.Resolution),
		capture.WithTempo(cfg.Record.Tempo),
	)
	kind, err := cfg.Input.KindFilter()
	if err != nil {
		return err
	}
	in.Registry().Register(rec, kind, cfg.Input.Channel)

	fmt.Printf("Recording %s (ctrl+c to stop)\n", in.Name())
	<-ctx.Done()
	in.Close()

	if err := rec.Save(args[0], syxFile); err != nil {
		return err
	}

	fmt.Printf("\nWrote %d events to %s\n", rec.Len(), args[0])
	if n := len(rec.Sysex()); n > 0 {
		if syxFile != "" {
			fmt.Printf("Wrote %d sysex blocks to %s\n", n, syxFile)
		} else {
			fmt.Printf("Discarded %d sysex blocks (use --syx to keep them)\n", n)
		}
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	// Log output would corrupt the alternate screen
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	in, err := openInput(cmd.Context(), quiet)
	if err != nil {
		return err
	}
	defer in.CloseDevice()

	kind, err := cfg.Input.KindFilter()
	if err != nil {
		return err
	}
	return tui.Run(in, kind, cfg.Input.Channel)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithEventLog(capture.NewLog(cfg.Server.EventsLog)),
	}

	if cfg.Input.Port != "" {
		in, err := openInput(ctx, logger)
		if err != nil {
			return err
		}
		defer in.CloseDevice()
		opts = append(opts, api.WithInput(in))
	}

	fmt.Printf("Starting API server on port %d...\n", cfg.Server.Port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", cfg.Server.Port)
	return api.NewServer(opts...).Serve(ctx, cfg.Server.Port)
}
