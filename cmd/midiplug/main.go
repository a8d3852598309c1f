// Package main is the entry point for the midiplug CLI
package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"github.com/james-see/midiplug/pkg/config"
	"github.com/james-see/midiplug/pkg/device"
	"github.com/james-see/midiplug/pkg/event"
	"github.com/james-see/midiplug/pkg/input"
	"github.com/james-see/midiplug/pkg/plug"
	"github.com/james-see/midiplug/pkg/sysex"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	inPort     string
	outPort    string
	thruPort   string
	channel    int
	kindName   string
	logLevel   string
	serverPort int
	syxFile    string

	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "midiplug",
	Short: "Route live MIDI input to event handlers",
	Long: `midiplug decodes raw MIDI from an input port into note, controller,
program change and sysex events, and routes them to subscribers filtered
by event kind and channel.

Examples:
  midiplug list
  midiplug monitor --in "TD-3" --channel 0
  midiplug monitor --in keys --thru synth
  midiplug monitor --in keys --kind controller
  midiplug record take.mid --syx take.syx
  midiplug send note 0 60 100 --out synth
  midiplug decode "F0 7E 01" "02 F7" "90 3C 64"
  midiplug tui
  midiplug serve --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List MIDI input and output ports",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <hex chunk>...",
	Short: "Decode hex encoded MIDI chunks without a device",
	Long:  `Feeds each argument as one transport chunk through the input pipeline and prints the events it dispatches.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDecode,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <input.syx>",
	Short: "Describe the sysex blocks of a .syx file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/midiplug/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	// Live input commands
	for _, c := range []*cobra.Command{monitorCmd, recordCmd, tuiCmd, serveCmd} {
		c.Flags().StringVarP(&inPort, "in", "i", "", "Input port name (exact or partial)")
		c.Flags().IntVarP(&channel, "channel", "c", -1, "Channel filter 0-15, -1 for all")
	}
	for _, c := range []*cobra.Command{monitorCmd, recordCmd, tuiCmd} {
		c.Flags().StringVarP(&kindName, "kind", "k", "", "Event kind filter (any, note-on, note-off, controller, program-change, sysex)")
	}
	monitorCmd.Flags().StringVarP(&thruPort, "thru", "t", "", "Forward events to this output port")
	recordCmd.Flags().StringVar(&syxFile, "syx", "", "Write received sysex blocks to this .syx file")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Server port")

	// send command
	sendCmd.PersistentFlags().StringVarP(&outPort, "out", "o", "", "Output port name (exact or partial)")
	_ = sendCmd.MarkPersistentFlagRequired("out")
	sendCmd.AddCommand(sendNoteCmd, sendOffCmd, sendCCCmd, sendPCCmd, sendSysexCmd)

	configCmd.AddCommand(configInitCmd)

	// Add commands
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads the config file and applies flag overrides
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("in") {
		cfg.Input.Port = inPort
	}
	if flags.Changed("channel") {
		cfg.Input.Channel = channel
	}
	if flags.Changed("kind") {
		cfg.Input.Kind = kindName
	}
	if flags.Changed("thru") {
		cfg.Output.ThruPort = thruPort
	}
	if flags.Changed("port") {
		cfg.Server.Port = serverPort
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger = cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := device.List(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println("Inputs:")
	for _, p := range ports.Inputs {
		fmt.Printf("  %d: %s\n", p.Number, p.Name)
	}
	fmt.Println("Outputs:")
	for _, p := range ports.Outputs {
		fmt.Printf("  %d: %s\n", p.Number, p.Name)
	}
	return nil
}

// parseHex accepts "F0 7E 01", "f07e01" or "0xF0,0x7E"
func parseHex(s string) ([]byte, error) {
	clean := strings.NewReplacer("0x", "", "0X", "", ",", " ").Replace(s)
	data, err := hex.DecodeString(strings.Join(strings.Fields(clean), ""))
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return data, nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	in := input.New(input.WithLogger(logger))
	in.Registry().Register(plug.EventFunc(printEvent), event.KindAny, plug.AnyChannel)

	for _, arg := range args {
		chunk, err := parseHex(arg)
		if err != nil {
			return err
		}
		if err := in.HandleRaw(chunk, 0); err != nil {
			return err
		}
	}

	stats := in.Stats()
	fmt.Printf("\n%d chunks, %d events, %d skipped, %d sysex dropped\n",
		stats.Received, stats.Dispatched, stats.Skipped, stats.SysexDropped)
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	blocks, err := sysex.ReadFile(args[0])
	if err != nil {
		return err
	}

	for i, b := range blocks {
		info, err := sysex.Describe(b.Payload)
		if err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		fmt.Printf("Block %d: %d bytes, manufacturer %s", i, info.Length, info.ManufacturerName())
		if info.Universal {
			fmt.Printf(", device %02X, sub-id %02X %02X", info.DeviceID, info.SubID1, info.SubID2)
		}
		fmt.Println()
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return err
		}
		path = p
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func printEvent(ev event.Event) error {
	if ch, ok := event.ChannelOf(ev); ok {
		fmt.Printf("ch%-2d %-14s %v\n", ch, ev.Kind(), ev)
		return nil
	}
	fmt.Printf("     %-14s %v\n", ev.Kind(), ev)
	return nil
}
