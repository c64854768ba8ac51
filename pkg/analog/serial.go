package analog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/itohio/iaware/pkg/logger"
)

const (
	// DefaultBaudRate matches the ADC bridge firmware.
	DefaultBaudRate = 460800
)

// Reading is one line reported by the ADC bridge.
type Reading struct {
	Timestamp time.Time
	Value     uint16
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial is a Source fed by an ADC bridge MCU on a serial port. The bridge
// reports readings far slower than the sampling deadline, so a reader
// goroutine keeps the latest value and ReadSample returns it without blocking.
type Serial struct {
	port     string
	baudRate int
	log      *slog.Logger

	conn      io.ReadWriteCloser
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	done      chan struct{}

	latest atomic.Uint32
	lines  atomic.Uint64
	errors atomic.Uint64
}

var _ Source = (*Serial)(nil)

// NewSerial creates a serial source for the given port and baud rate.
func NewSerial(port string, baudRate int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		log:      logger.Component("analog").With("port", port),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Connect opens the serial port and starts reading.
func (s *Serial) Connect() error {
	port, err := serial.Open(s.port, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}
	return s.attach(port)
}

func (s *Serial) attach(conn io.ReadWriteCloser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		conn.Close()
		return fmt.Errorf("already connected")
	}

	s.conn = conn
	s.connected = true
	s.done = make(chan struct{})

	go s.readLines(conn, s.done)

	return nil
}

// Close closes the port and waits for the reader to exit.
func (s *Serial) Close() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil
	}

	s.cancel()

	var err error
	if s.conn != nil {
		err = s.conn.Close()
		s.conn = nil
	}
	s.connected = false
	done := s.done
	s.mu.Unlock()

	<-done

	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// IsConnected returns whether the port is open.
func (s *Serial) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// ReadSample returns the latest reading. It never blocks.
func (s *Serial) ReadSample() uint16 {
	return uint16(s.latest.Load())
}

// Lines returns the number of readings parsed so far.
func (s *Serial) Lines() uint64 { return s.lines.Load() }

// Errors returns the number of lines that failed to parse.
func (s *Serial) Errors() uint64 { return s.errors.Load() }

func (s *Serial) readLines(r io.Reader, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		reading, err := parseLine(line)
		if err != nil {
			if s.errors.Add(1) == 1 {
				s.log.Warn("failed to parse line", "line", line, "error", err)
			}
			continue
		}

		s.latest.Store(uint32(reading.Value))
		s.lines.Add(1)
	}

	if err := scanner.Err(); err != nil && s.ctx.Err() == nil {
		s.log.Error("error reading from serial port", "error", err)
	}
}

// parseLine parses one bridge line.
// Format: unix_micros,reading[,extra...]
// Example: 1234567890123,2048
func parseLine(line string) (Reading, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return Reading{}, fmt.Errorf("invalid line format: expected at least 2 comma-separated values, got %d", len(parts))
	}

	micros, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return Reading{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	value, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 16)
	if err != nil {
		return Reading{}, fmt.Errorf("invalid reading: %w", err)
	}

	return Reading{
		Timestamp: time.UnixMicro(micros),
		Value:     uint16(value),
	}, nil
}
