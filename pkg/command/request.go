// Package command implements the line-oriented command surface. Parse turns
// a line into a typed request; Handler executes requests against a
// controller and writes the response.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/itohio/hallboard/pkg/board"
	"github.com/itohio/hallboard/pkg/calib"
	"github.com/itohio/hallboard/pkg/settings"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidAction  = errors.New("invalid action")
	ErrMalformed      = errors.New("malformed command")
)

// Request is one parsed command.
type Request interface {
	fmt.Stringer
	request()
}

type (
	// Scan prints the bitmap, raw readings and debug grid of a fresh scan.
	Scan struct{}
	// Frame prints a fresh scan as one frame line.
	Frame struct{}
	// Help lists the commands.
	Help struct{}

	GetCalibration struct {
		Kind  calib.Kind
		Scope board.Scope
	}
	SetCalibration struct {
		Kind   calib.Kind
		Scope  board.Scope
		Source calib.Source
	}
	SaveCalibration struct {
		Kind calib.Kind // may be calib.AllKinds
	}
	LoadCalibration struct {
		Kind calib.Kind // may be calib.AllKinds
	}

	GetSetting struct {
		Key settings.Key
	}
	SetSetting struct {
		Key   settings.Key
		Value int
	}
)

func (Scan) request()            {}
func (Frame) request()           {}
func (Help) request()            {}
func (GetCalibration) request()  {}
func (SetCalibration) request()  {}
func (SaveCalibration) request() {}
func (LoadCalibration) request() {}
func (GetSetting) request()      {}
func (SetSetting) request()      {}

func (Scan) String() string  { return "scan" }
func (Frame) String() string { return "frame" }
func (Help) String() string  { return "help" }

func (r GetCalibration) String() string {
	return fmt.Sprintf("calib get %s %s", r.Kind, r.Scope)
}

func (r SetCalibration) String() string {
	return fmt.Sprintf("calib set %s %s %s", r.Kind, r.Scope, r.Source)
}

func (r SaveCalibration) String() string { return "calib save " + r.Kind.String() }
func (r LoadCalibration) String() string { return "calib load " + r.Kind.String() }
func (r GetSetting) String() string      { return "setting get " + r.Key.String() }

func (r SetSetting) String() string {
	return fmt.Sprintf("setting set %s %d", r.Key, r.Value)
}

// Parse tokenizes a line on whitespace. Keywords are case-sensitive.
func Parse(line string) (Request, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	name, args := tokens[0], tokens[1:]
	switch name {
	case "scan", "frame":
		if err := expectArgs(name, args, 0); err != nil {
			return nil, err
		}
		if name == "scan" {
			return Scan{}, nil
		}
		return Frame{}, nil
	case "help":
		return Help{}, nil
	case "calib":
		return parseCalib(args)
	case "setting":
		return parseSetting(args)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

func parseCalib(args []string) (Request, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: calib needs an action", ErrMalformed)
	}
	action, args := args[0], args[1:]
	switch action {
	case "get", "set":
	case "save", "load":
		if err := expectArgs("calib "+action, args, 1); err != nil {
			return nil, err
		}
		kind, err := calib.ParseKind(args[0])
		if err != nil {
			return nil, err
		}
		if action == "save" {
			return SaveCalibration{Kind: kind}, nil
		}
		return LoadCalibration{Kind: kind}, nil
	default:
		return nil, fmt.Errorf("%w: calib %q", ErrInvalidAction, action)
	}

	if len(args) < 3 {
		return nil, fmt.Errorf("%w: calib %s needs <kind> <row> <col>", ErrMalformed, action)
	}
	kind, err := calib.ParseKind(args[0])
	if err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s only accepted by save and load", calib.ErrInvalidKind, kind)
	}
	scope, err := parseScope(args[1], args[2])
	if err != nil {
		return nil, err
	}

	if action == "get" {
		if err := expectArgs("calib get", args, 3); err != nil {
			return nil, err
		}
		return GetCalibration{Kind: kind, Scope: scope}, nil
	}

	src := calib.Current
	switch len(args) {
	case 3:
	case 4:
		if args[3] != "current" {
			v, err := strconv.Atoi(args[3])
			if err != nil {
				return nil, fmt.Errorf("%w: value %q", ErrMalformed, args[3])
			}
			src = calib.Literal(v)
		}
	default:
		return nil, fmt.Errorf("%w: too many arguments for calib set", ErrMalformed)
	}
	return SetCalibration{Kind: kind, Scope: scope, Source: src}, nil
}

func parseSetting(args []string) (Request, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: setting needs an action", ErrMalformed)
	}
	action, args := args[0], args[1:]
	switch action {
	case "get":
		if err := expectArgs("setting get", args, 1); err != nil {
			return nil, err
		}
		key, err := settings.ParseKey(args[0])
		if err != nil {
			return nil, err
		}
		return GetSetting{Key: key}, nil
	case "set":
		if err := expectArgs("setting set", args, 2); err != nil {
			return nil, err
		}
		key, err := settings.ParseKey(args[0])
		if err != nil {
			return nil, err
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("%w: value %q", ErrMalformed, args[1])
		}
		return SetSetting{Key: key, Value: v}, nil
	}
	return nil, fmt.Errorf("%w: setting %q", ErrInvalidAction, action)
}

func expectArgs(cmd string, args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrMalformed, cmd, n, len(args))
	}
	return nil
}

func parseScope(row, col string) (board.Scope, error) {
	r, err := parseCoord(row)
	if err != nil {
		return board.Scope{}, err
	}
	c, err := parseCoord(col)
	if err != nil {
		return board.Scope{}, err
	}
	return board.Scope{Row: r, Col: c}, nil
}

// parseCoord accepts 0..7, the wildcard sentinel 255, "all" or "global".
func parseCoord(s string) (uint8, error) {
	switch s {
	case "all", "global":
		return board.All, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: coordinate %q", ErrMalformed, s)
	}
	if v == int(board.All) || (v >= 0 && v < board.Rows) {
		return uint8(v), nil
	}
	return 0, fmt.Errorf("%w: %d", board.ErrInvalidCoordinate, v)
}
