//go:build tinygo

package main

import "machine"

const (
	// Scan configuration
	SCAN_INTERVAL_MS = 200 // time between background scans
	SETTLE_MS        = 10  // multiplexer settle time per column

	// ADC configuration. Readings are reduced to 10 bits.
	ADC_REFERENCE_MV = 5000
	ADC_RESOLUTION   = 10

	// Multiplexer address lines A, B, C and the shared INH line (low enables)
	PIN_ADDR_A  = machine.D2
	PIN_ADDR_B  = machine.D3
	PIN_ADDR_C  = machine.D4
	PIN_INHIBIT = machine.D5

	// External 24LC32 EEPROM on the I2C bus (SDA D20, SCL D21)
	EEPROM_ADDRESS = 0x50
	EEPROM_SIZE    = 4096

	// Serial configuration
	// A frame line is at most ~350 bytes, 5 frames/sec need ~17,500 baud.
	UART_BAUD_RATE = 115200
	LINE_BUFFER    = 64 // longest accepted command line
)

// Row multiplexer common pins; row 0 is wired to A7.
var PIN_ROWS = [8]machine.Pin{
	machine.ADC7, machine.ADC6, machine.ADC5, machine.ADC4,
	machine.ADC3, machine.ADC2, machine.ADC1, machine.ADC0,
}
