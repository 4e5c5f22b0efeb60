//go:build tinygo

//go:generate tinygo flash -target=arduino-mega2560

package main

import (
	"machine"
	"time"

	"github.com/itohio/hallboard/pkg/board"
	"github.com/itohio/hallboard/pkg/command"
	"github.com/itohio/hallboard/pkg/controller"
	"github.com/itohio/hallboard/pkg/mux"
	"github.com/itohio/hallboard/pkg/nvm"
)

var (
	uart = machine.UART0
	i2c  = machine.I2C0

	// Serial buffer for reading lines
	serialBuffer [LINE_BUFFER]byte
	serialPos    int
	overflow     bool
)

// machinePort drives the multiplexers from the microcontroller pins.
type machinePort struct {
	address [mux.AddressBits]machine.Pin
	rows    [board.Rows]machine.ADC
}

func (p *machinePort) Select(addr uint8) error {
	for bit, pin := range p.address {
		pin.Set(addr&(1<<bit) != 0)
	}
	return nil
}

// Read samples a row. machine.ADC scales readings to 16 bits.
func (p *machinePort) Read(row int) (uint16, error) {
	return p.rows[row].Get() >> 6, nil
}

func newMachinePort() *machinePort {
	p := &machinePort{address: [mux.AddressBits]machine.Pin{PIN_ADDR_A, PIN_ADDR_B, PIN_ADDR_C}}
	for _, pin := range p.address {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.Low()
	}
	PIN_INHIBIT.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_INHIBIT.Low()

	machine.InitADC()
	adcConfig := machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	}
	for row, pin := range PIN_ROWS {
		pin.Configure(machine.PinConfig{Mode: machine.PinInput})
		p.rows[row] = machine.ADC{Pin: pin}
		p.rows[row].Configure(adcConfig)
	}
	return p
}

func main() {
	uart.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})
	if err := i2c.Configure(machine.I2CConfig{}); err != nil {
		println("# i2c:", err.Error())
	}

	scanner, err := mux.NewScanner(newMachinePort(), SETTLE_MS*time.Millisecond, nil)
	if err != nil {
		println("# scanner:", err.Error())
		return
	}

	ctrl := controller.New(scanner, nvm.NewEEPROM(i2c, EEPROM_ADDRESS, EEPROM_SIZE))
	if _, err := ctrl.Boot(); err != nil {
		// Continue with zeroed calibration; the host can recalibrate.
		println("# boot:", err.Error())
	}
	handler := command.NewHandler(ctrl)
	println("# hallboard ready")

	lastScan := time.Now()
	for {
		processSerial(handler)

		if time.Since(lastScan) >= SCAN_INTERVAL_MS*time.Millisecond {
			// Keeps the raw matrix fresh for "calib set ... current".
			if _, err := ctrl.ScanAndClassify(); err != nil {
				println("# scan:", err.Error())
			}
			lastScan = time.Now()
		}

		time.Sleep(time.Millisecond)
	}
}

// processSerial collects bytes into a line and executes it on newline.
// Overlong lines are rejected whole.
func processSerial(handler *command.Handler) {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			switch {
			case overflow:
				print(command.ErrorPrefix, "line too long\n")
			case serialPos > 0:
				handler.ExecuteLine(uart, string(serialBuffer[:serialPos]))
			}
			serialPos = 0
			overflow = false
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		} else {
			overflow = true
		}
	}
}
