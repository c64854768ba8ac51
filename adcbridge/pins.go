//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_INTERVAL_US = 250 // ADC read interval in microseconds
	NUM_SAMPLES        = 4   // Number of reads averaged into one reported reading

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	PIN_ADC    = machine.A1
	PIN_STATUS = machine.LED

	// Serial configuration
	// Line format "unix_micros,reading\n", at most 22 bytes.
	// 1000 lines/sec * 22 bytes = 22,000 bytes/sec, which needs 220,000 baud at 8N1.
	// 460800 leaves ~2x headroom.
	UART_BAUD_RATE = 460800
)
