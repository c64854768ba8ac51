// Package store persists the sampling frequency across device restarts.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultSamplingFrequency is returned when no frequency was ever persisted.
const DefaultSamplingFrequency uint32 = 20000

// ErrInvalidFrequency is returned when persisting a zero frequency.
var ErrInvalidFrequency = errors.New("sampling frequency must be positive")

// Store is durable key/value persistence for the sampling frequency.
type Store interface {
	// SamplingFrequency returns the persisted frequency in Hz, or the default if never set.
	SamplingFrequency() uint32
	// SetSamplingFrequency durably records the frequency in Hz.
	SetSamplingFrequency(hz uint32) error
}

var (
	_ Store = (*File)(nil)
	_ Store = (*Memory)(nil)
)

type document struct {
	SamplingFrequency uint32 `yaml:"sampling_frequency"`
}

// File stores values in a YAML document. Writes go to a temporary file that is
// renamed over the target so a crash never leaves a truncated document.
type File struct {
	mu       sync.Mutex
	path     string
	fallback uint32
}

// NewFile creates a file-backed store. fallback is returned when the file is
// missing or holds no frequency; zero selects DefaultSamplingFrequency.
func NewFile(path string, fallback uint32) *File {
	if fallback == 0 {
		fallback = DefaultSamplingFrequency
	}
	return &File{path: path, fallback: fallback}
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

func (f *File) SamplingFrequency() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil || doc.SamplingFrequency == 0 {
		return f.fallback
	}
	return doc.SamplingFrequency
}

func (f *File) SetSamplingFrequency(hz uint32) error {
	if hz == 0 {
		return ErrInvalidFrequency
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		doc = document{}
	}
	doc.SamplingFrequency = hz

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".store-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close store: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace store: %w", err)
	}
	return nil
}

func (f *File) read() (document, error) {
	var doc document
	data, err := os.ReadFile(f.path)
	if err != nil {
		return doc, err
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse store: %w", err)
	}
	return doc, nil
}

// Memory is an in-process store. FailWrites makes SetSamplingFrequency fail,
// which lets tests exercise the persist-failure path.
type Memory struct {
	mu         sync.Mutex
	hz         uint32
	writes     []uint32
	FailWrites bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) SamplingFrequency() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hz == 0 {
		return DefaultSamplingFrequency
	}
	return m.hz
}

func (m *Memory) SetSamplingFrequency(hz uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, hz)
	if m.FailWrites {
		return errors.New("memory store: write failed")
	}
	if hz == 0 {
		return ErrInvalidFrequency
	}
	m.hz = hz
	return nil
}

// Writes returns every value passed to SetSamplingFrequency, in order.
func (m *Memory) Writes() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint32(nil), m.writes...)
}
