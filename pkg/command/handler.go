package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/itohio/hallboard/pkg/board"
	"github.com/itohio/hallboard/pkg/calib"
	"github.com/itohio/hallboard/pkg/controller"
	"github.com/itohio/hallboard/pkg/detect"
	"github.com/itohio/hallboard/pkg/settings"
)

// Responses end with one of these lines.
const (
	OK          = "ok"
	ErrorPrefix = "error: "
)

// Controller is the part of controller.Controller the handler drives.
type Controller interface {
	ScanAndClassify() (board.Frame, error)
	Calibration(k calib.Kind, scope board.Scope) ([]calib.Entry, error)
	SetCalibration(k calib.Kind, scope board.Scope, src calib.Source) error
	SaveCalibration(k calib.Kind, progress calib.ProgressFunc) (calib.Result, error)
	LoadCalibration(k calib.Kind, progress calib.ProgressFunc) (calib.Result, error)
	Setting(k settings.Key) (int, error)
	SetSetting(k settings.Key, v int) error
}

var _ Controller = (*controller.Controller)(nil)

// Handler executes requests against a controller.
type Handler struct {
	ctrl Controller
}

// NewHandler creates a handler.
func NewHandler(ctrl Controller) *Handler {
	return &Handler{ctrl: ctrl}
}

// Execute runs req, writes its output to w followed by "ok" or
// "error: <msg>", and returns the request error.
func (h *Handler) Execute(w io.Writer, req Request) error {
	err := h.execute(w, req)
	if err != nil {
		fmt.Fprintf(w, "%s%v\n", ErrorPrefix, err)
		return err
	}
	fmt.Fprintln(w, OK)
	return nil
}

// ExecuteLine parses and executes one line.
func (h *Handler) ExecuteLine(w io.Writer, line string) error {
	req, err := Parse(line)
	if err != nil {
		fmt.Fprintf(w, "%s%v\n", ErrorPrefix, err)
		return err
	}
	return h.Execute(w, req)
}

// Serve runs a command session until r is exhausted or ctx is done. Blank
// lines are ignored. Request errors are reported to w and do not end the
// session. Cancellation is observed between lines.
func (h *Handler) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		_ = h.ExecuteLine(w, line)
	}
	return scanner.Err()
}

func (h *Handler) execute(w io.Writer, req Request) error {
	switch req := req.(type) {
	case Scan:
		f, err := h.ctrl.ScanAndClassify()
		if err != nil {
			return err
		}
		writeScan(w, &f)
	case Frame:
		f, err := h.ctrl.ScanAndClassify()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, f.Line())
	case Help:
		fmt.Fprint(w, Usage)
	case GetCalibration:
		entries, err := h.ctrl.Calibration(req.Kind, req.Scope)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(w, "%s %d %d %d\n", req.Kind, e.Row, e.Col, e.Value)
		}
	case SetCalibration:
		return h.ctrl.SetCalibration(req.Kind, req.Scope, req.Source)
	case SaveCalibration:
		r, err := h.ctrl.SaveCalibration(req.Kind, progressWriter(w, "save"))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "saved %d bytes, %d written\n", r.Bytes, r.Written)
	case LoadCalibration:
		r, err := h.ctrl.LoadCalibration(req.Kind, progressWriter(w, "load"))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "loaded %d bytes\n", r.Bytes)
	case GetSetting:
		v, err := h.ctrl.Setting(req.Key)
		if err != nil {
			return err
		}
		if req.Key == settings.Method {
			fmt.Fprintf(w, "%s %d %s\n", req.Key, v, detect.Method(v))
		} else {
			fmt.Fprintf(w, "%s %d\n", req.Key, v)
		}
	case SetSetting:
		return h.ctrl.SetSetting(req.Key, req.Value)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownCommand, req)
	}
	return nil
}

func progressWriter(w io.Writer, verb string) calib.ProgressFunc {
	return func(p calib.Progress) {
		fmt.Fprintf(w, "%s %s %d/%d: %d bytes\n", verb, p.Kind, p.Step, p.Steps, p.Total.Bytes)
	}
}

func writeScan(w io.Writer, f *board.Frame) {
	fmt.Fprintf(w, "method %s, %d occupied\n", detect.Method(f.Method), f.Bitmap.Count())
	fmt.Fprintln(w, f.Bitmap.String())
	for row := range board.Rows {
		var sb strings.Builder
		for col := range board.Cols {
			fmt.Fprintf(&sb, "%5d", f.Raw[row][col])
		}
		fmt.Fprintln(w, sb.String())
	}
	fmt.Fprintln(w, f.Debug.String())
}

// Usage is printed by the help command.
const Usage = `commands:
  scan                                     scan and print bitmap, raw and debug grids
  frame                                    scan and print one frame line
  calib get <kind> <row> <col>             print calibration values
  calib set <kind> <row> <col> [<v>|current]
                                           set values, current reading when omitted
  calib save <kind|all>                    persist calibration
  calib load <kind|all>                    restore calibration
  setting get <autoload|method>
  setting set autoload <0|1>
  setting set method <0..3>                0 both, 1 notempty, 2 present, 3 either
kinds: present empty presentMargin emptyMargin
row, col: 0..7, all, global or 255
`
