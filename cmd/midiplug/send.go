package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/james-see/midiplug/pkg/device"
	"github.com/james-see/midiplug/pkg/output"
)

var noteDuration time.Duration

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a single message to an output port",
}

var sendNoteCmd = &cobra.Command{
	Use:   "note <channel> <pitch> <velocity>",
	Short: "Send a note on, followed by a note off when --duration is set",
	Args:  cobra.ExactArgs(3),
	RunE:  runSendNote,
}

var sendOffCmd = &cobra.Command{
	Use:   "off <channel> <pitch> [velocity]",
	Short: "Send a note off",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runSendOff,
}

var sendCCCmd = &cobra.Command{
	Use:   "cc <channel> <controller> <value>",
	Short: "Send a control change",
	Args:  cobra.ExactArgs(3),
	RunE:  runSendCC,
}

var sendPCCmd = &cobra.Command{
	Use:   "pc <channel> <program>",
	Short: "Send a program change",
	Args:  cobra.ExactArgs(2),
	RunE:  runSendPC,
}

var sendSysexCmd = &cobra.Command{
	Use:   "sysex <hex>",
	Short: "Send a complete sysex block (F0 ... F7)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSendSysex,
}

func init() {
	sendNoteCmd.Flags().DurationVarP(&noteDuration, "duration", "d", 0, "Send note off after this long (e.g. 500ms)")
}

// parseBytes parses decimal or 0x prefixed byte arguments
func parseBytes(args []string) ([]uint8, error) {
	out := make([]uint8, len(args))
	for i, a := range args {
		v, err := strconv.ParseUint(a, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid argument %q: %w", a, err)
		}
		out[i] = uint8(v)
	}
	return out, nil
}

// withOutput opens the --out port for the duration of fn
func withOutput(cmd *cobra.Command, fn func(*output.Output) error) error {
	port, err := device.FindOutput(cmd.Context(), outPort)
	if err != nil {
		return withPortNames(cmd.Context(), err, device.OutputNames)
	}
	out, err := output.Open(port, output.WithLogger(logger))
	if err != nil {
		return err
	}
	defer out.Close()

	return fn(out)
}

func runSendNote(cmd *cobra.Command, args []string) error {
	v, err := parseBytes(args)
	if err != nil {
		return err
	}
	return withOutput(cmd, func(out *output.Output) error {
		if err := out.SendNoteOn(v[0], v[1], v[2]); err != nil {
			return err
		}
		if noteDuration <= 0 {
			return nil
		}
		time.Sleep(noteDuration)
		return out.SendNoteOff(v[0], v[1], 0)
	})
}

func runSendOff(cmd *cobra.Command, args []string) error {
	v, err := parseBytes(args)
	if err != nil {
		return err
	}
	velocity := uint8(0)
	if len(v) == 3 {
		velocity = v[2]
	}
	return withOutput(cmd, func(out *output.Output) error {
		return out.SendNoteOff(v[0], v[1], velocity)
	})
}

func runSendCC(cmd *cobra.Command, args []string) error {
	v, err := parseBytes(args)
	if err != nil {
		return err
	}
	return withOutput(cmd, func(out *output.Output) error {
		return out.SendController(v[0], v[1], v[2])
	})
}

func runSendPC(cmd *cobra.Command, args []string) error {
	v, err := parseBytes(args)
	if err != nil {
		return err
	}
	return withOutput(cmd, func(out *output.Output) error {
		return out.SendProgramChange(v[0], v[1])
	})
}

func runSendSysex(cmd *cobra.Command, args []string) error {
	data, err := parseHex(args[0])
	if err != nil {
		return err
	}
	return withOutput(cmd, func(out *output.Output) error {
		return out.SendSysex(data)
	})
}
