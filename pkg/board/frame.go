package board

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frame is the result of one scan-classify cycle.
type Frame struct {
	Time   time.Time
	Method uint8 // detection method used for Bitmap
	Bitmap Bitmap
	Raw    Matrix
	Debug  DebugGrid
}

// frameFields is the number of comma-separated fields in a frame line.
const frameFields = 5 + Cells

// Line encodes the frame as a single line without trailing newline.
// Format: frame,unix_micros,method,bitmap_hex,debug_symbols,raw0,...,raw63
// Example: frame,1234567890123,2,0000ff000000ff00,--..??00...,512,498,...
func (f *Frame) Line() string {
	var sb strings.Builder
	sb.Grow(32 + Cells*6)
	sb.WriteString("frame,")
	sb.WriteString(strconv.FormatInt(f.Time.UnixNano()/1000, 10))
	sb.WriteByte(',')
	sb.WriteString(strconv.Itoa(int(f.Method)))
	sb.WriteByte(',')
	sb.WriteString(fmt.Sprintf("%016x", uint64(f.Bitmap)))
	sb.WriteByte(',')
	for row := range Rows {
		for col := range Cols {
			sb.WriteByte(byte(f.Debug[row][col]))
		}
	}
	for row := range Rows {
		for col := range Cols {
			sb.WriteByte(',')
			sb.WriteString(strconv.Itoa(int(f.Raw[row][col])))
		}
	}
	return sb.String()
}

// IsFrameLine reports whether line looks like an encoded frame.
func IsFrameLine(line string) bool {
	return strings.HasPrefix(line, "frame,")
}

// ParseFrame decodes a line produced by Frame.Line.
func ParseFrame(line string) (Frame, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != frameFields {
		return Frame{}, fmt.Errorf("invalid frame: expected %d comma-separated values, got %d", frameFields, len(parts))
	}
	if parts[0] != "frame" {
		return Frame{}, fmt.Errorf("invalid frame: unexpected tag %q", parts[0])
	}

	micros, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Frame{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	method, err := strconv.ParseUint(parts[2], 10, 8)
	if err != nil {
		return Frame{}, fmt.Errorf("invalid method: %w", err)
	}

	bitmap, err := strconv.ParseUint(parts[3], 16, 64)
	if err != nil {
		return Frame{}, fmt.Errorf("invalid bitmap: %w", err)
	}

	symbols := parts[4]
	if len(symbols) != Cells {
		return Frame{}, fmt.Errorf("invalid debug symbols: expected %d, got %d", Cells, len(symbols))
	}

	f := Frame{
		Time:   time.Unix(0, micros*1000),
		Method: uint8(method),
		Bitmap: Bitmap(bitmap),
	}
	for i := range Cells {
		s := Symbol(symbols[i])
		if !s.Valid() {
			return Frame{}, fmt.Errorf("invalid debug symbol %q at %d", symbols[i], i)
		}
		f.Debug[i/Cols][i%Cols] = s

		v, err := strconv.ParseUint(parts[5+i], 10, 16)
		if err != nil {
			return Frame{}, fmt.Errorf("invalid reading at %d: %w", i, err)
		}
		if uint16(v) > MaxReading {
			return Frame{}, fmt.Errorf("reading out of range at %d: %d (max %d)", i, v, MaxReading)
		}
		f.Raw[i/Cols][i%Cols] = uint16(v)
	}
	return f, nil
}
