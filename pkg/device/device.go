// Package device enumerates MIDI ports through the registered gomidi driver.
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// DefaultTimeout bounds a port scan. Some drivers hang while enumerating.
const DefaultTimeout = 3 * time.Second

var (
	ErrNotFound = errors.New("port not found")
	ErrTimeout  = errors.New("port scan timed out")
)

// Port describes a port for listings
type Port struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

// Ports is the result of a scan
type Ports struct {
	Inputs  []Port `json:"inputs"`
	Outputs []Port `json:"outputs"`
}

type scanResult struct {
	ins  []drivers.In
	outs []drivers.Out
}

// scanner is replaced in tests
var scanner = func() ([]drivers.In, []drivers.Out) {
	return midi.GetInPorts(), midi.GetOutPorts()
}

func scan(ctx context.Context) (scanResult, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	scanFn := scanner
	ch := make(chan scanResult, 1)
	go func() {
		ins, outs := scanFn()
		ch <- scanResult{ins: ins, outs: outs}
	}()

	select {
	case result := <-ch:
		return result, nil
	case <-ctx.Done():
		return scanResult{}, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
}

// Inputs returns the available input ports
func Inputs(ctx context.Context) ([]drivers.In, error) {
	result, err := scan(ctx)
	return result.ins, err
}

// Outputs returns the available output ports
func Outputs(ctx context.Context) ([]drivers.Out, error) {
	result, err := scan(ctx)
	return result.outs, err
}

// List returns both port lists
func List(ctx context.Context) (Ports, error) {
	result, err := scan(ctx)
	if err != nil {
		return Ports{}, err
	}
	return Ports{
		Inputs:  describe(result.ins),
		Outputs: describe(result.outs),
	}, nil
}

// InputNames returns the names of the available input ports
func InputNames(ctx context.Context) ([]string, error) {
	ins, err := Inputs(ctx)
	return names(ins), err
}

// OutputNames returns the names of the available output ports
func OutputNames(ctx context.Context) ([]string, error) {
	outs, err := Outputs(ctx)
	return names(outs), err
}

// FindInput returns the input port whose name matches exactly, or else the
// first one containing name, ignoring case
func FindInput(ctx context.Context, name string) (drivers.In, error) {
	ins, err := Inputs(ctx)
	if err != nil {
		return nil, err
	}
	return find(ins, name)
}

// FindOutput is FindInput for output ports
func FindOutput(ctx context.Context, name string) (drivers.Out, error) {
	outs, err := Outputs(ctx)
	if err != nil {
		return nil, err
	}
	return find(outs, name)
}

type port interface {
	Number() int
	String() string
}

func find[P port](ports []P, name string) (P, error) {
	var zero P
	if name == "" {
		return zero, fmt.Errorf("%w: empty name", ErrNotFound)
	}

	for _, p := range ports {
		if p.String() == name {
			return p, nil
		}
	}

	lower := strings.ToLower(name)
	for _, p := range ports {
		if strings.Contains(strings.ToLower(p.String()), lower) {
			return p, nil
		}
	}

	return zero, fmt.Errorf("%w: %q", ErrNotFound, name)
}

func names[P port](ports []P) []string {
	result := make([]string, len(ports))
	for i, p := range ports {
		result[i] = p.String()
	}
	return result
}

func describe[P port](ports []P) []Port {
	result := make([]Port, len(ports))
	for i, p := range ports {
		result[i] = Port{Number: p.Number(), Name: p.String()}
	}
	return result
}
