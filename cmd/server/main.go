// Package main is the entry point for the midiplug API server
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"github.com/james-see/midiplug/pkg/api"
	"github.com/james-see/midiplug/pkg/capture"
	"github.com/james-see/midiplug/pkg/config"
	"github.com/james-see/midiplug/pkg/device"
	"github.com/james-see/midiplug/pkg/input"
)

func main() {
	configPath := flag.String("config", "", "Config file (default ~/.config/midiplug/config.yaml)")
	port := flag.Int("port", 0, "Server port (overrides config)")
	in := flag.String("in", "", "Input port to monitor (overrides config)")
	flag.Parse()

	if err := run(*configPath, *port, *in); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, port int, inPort string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if inPort != "" {
		cfg.Input.Port = inPort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithEventLog(capture.NewLog(cfg.Server.EventsLog)),
	}
	if cfg.Input.Port != "" {
		p, err := device.FindInput(ctx, cfg.Input.Port)
		if err != nil {
			return err
		}
		live, err := input.Open(p,
			input.WithLogger(logger),
			input.WithMaxSysexSize(cfg.Input.MaxSysexSize),
			input.WithSysexBufferSize(cfg.Input.SysexBufferSize),
		)
		if err != nil {
			return err
		}
		defer live.CloseDevice()
		opts = append(opts, api.WithInput(live))
	}

	fmt.Printf("Starting midiplug API server on port %d...\n", cfg.Server.Port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", cfg.Server.Port)

	return api.NewServer(opts...).Serve(ctx, cfg.Server.Port)
}
