//go:build tinygo

//go:generate tinygo flash -target=xiao

// Command adcbridge runs on the microcontroller wired to the sensor. It
// reports averaged ADC readings over the serial port as
// "unix_micros,reading\n" lines for the node's serial source.
package main

import (
	"machine"
	"time"
)

var (
	adc  machine.ADC
	uart = machine.UART0

	sum   uint32
	count int

	lastRead time.Time
	lines    uint32
)

func main() {
	PIN_ADC.Configure(machine.PinConfig{Mode: machine.PinInput})
	PIN_STATUS.Configure(machine.PinConfig{Mode: machine.PinOutput})

	adc = machine.ADC{Pin: PIN_ADC}
	adc.Configure(machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	})

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	lastRead = time.Now()

	for {
		now := time.Now()

		if now.Sub(lastRead) >= SAMPLE_INTERVAL_US*time.Microsecond {
			// the ADC returns 16-bit left-aligned values
			sum += uint32(adc.Get() >> (16 - ADC_RESOLUTION))
			count++
			lastRead = now
		}

		if count >= NUM_SAMPLES {
			report(uint16(sum / uint32(count)))
			sum = 0
			count = 0
		}

		time.Sleep(20 * time.Microsecond)
	}
}

func report(reading uint16) {
	print(time.Now().UnixNano() / 1000)
	print(",")
	print(reading)
	print("\n")

	// blink roughly once a second while reporting
	lines++
	PIN_STATUS.Set(lines&0x200 != 0)
}
