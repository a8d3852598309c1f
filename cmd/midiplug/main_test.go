package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/james-see/midiplug/pkg/device"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{"spaced", "F0 7E 01", []byte{0xF0, 0x7E, 0x01}, false},
		{"packed lower", "f07e01", []byte{0xF0, 0x7E, 0x01}, false},
		{"prefixed", "0xF0,0x7E", []byte{0xF0, 0x7E}, false},
		{"odd length", "F0 7", nil, true},
		{"not hex", "zz", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHex(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHex() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, tt.want) {
				t.Errorf("parseHex() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestParseBytes(t *testing.T) {
	got, err := parseBytes([]string{"0", "60", "0x7F"})
	if err != nil {
		t.Fatalf("parseBytes() error = %v", err)
	}
	if !bytes.Equal(got, []byte{0, 60, 0x7F}) {
		t.Errorf("parseBytes() = %v", got)
	}

	if _, err := parseBytes([]string{"256"}); err == nil {
		t.Error("parseBytes(256) should fail")
	}
	if _, err := parseBytes([]string{"-1"}); err == nil {
		t.Error("parseBytes(-1) should fail")
	}
}

func TestWithPortNames(t *testing.T) {
	list := func(context.Context) ([]string, error) {
		return []string{"TD-3", "Keystep"}, nil
	}

	err := withPortNames(context.Background(), device.ErrNotFound, list)
	if !errors.Is(err, device.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "available: TD-3, Keystep") {
		t.Errorf("error = %q, want the port names", err)
	}

	// A timed out scan is not listed again
	err = withPortNames(context.Background(), device.ErrTimeout, func(context.Context) ([]string, error) {
		t.Fatal("list called after a timeout")
		return nil, nil
	})
	if !errors.Is(err, device.ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}
