// Package link connects host tools to a board: a serial link to boardd or
// the firmware, or an in-process simulated board.
package link

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"

	"github.com/itohio/hallboard/pkg/board"
	"github.com/itohio/hallboard/pkg/command"
)

const (
	// DefaultBaudRate is the baud rate of the firmware UART.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size of the frames channel.
	DefaultBufferSize = 16
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrClosed       = errors.New("connection closed")
	// ErrCommand wraps the message of an "error: ..." response.
	ErrCommand = errors.New("command failed")
)

// Device is a board connection.
type Device interface {
	Connect() error
	Close() error
	// Frames delivers frames produced by polling or by explicit frame
	// commands. It is closed by Close.
	Frames() <-chan board.Frame
	// Command sends one command line and returns the response lines without
	// the final status line. Frame lines are delivered on Frames instead.
	Command(ctx context.Context, line string) ([]string, error)
	IsConnected() bool
}

var (
	_ Device = (*Serial)(nil)
	_ Device = (*Mock)(nil)
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, p := range ports {
		desc := p.Name
		if p.IsUSB {
			desc = fmt.Sprintf("%s (USB %s:%s %s)", p.Name, p.VID, p.PID, p.Product)
		}
		result = append(result, Port{Name: p.Name, Description: strings.TrimSpace(desc)})
	}
	return result, nil
}

// statusLine reports whether line terminates a response and the command
// error it carries.
func statusLine(line string) (bool, error) {
	switch {
	case line == command.OK:
		return true, nil
	case strings.HasPrefix(line, command.ErrorPrefix):
		return true, fmt.Errorf("%w: %s", ErrCommand, strings.TrimPrefix(line, command.ErrorPrefix))
	}
	return false, nil
}
