// Package config holds the engine configuration supplied by the process
// bootstrap layer.
package config

import (
	"runtime"

	"github.com/pkg/errors"
)

// Defaults for the query engine knobs.
const (
	// DefaultBatchSize is the maximum number of points per delivered batch.
	DefaultBatchSize = 1_000_000
	// DefaultBufferSize is the capacity of the bounded batch channel.
	DefaultBufferSize = 4
	// DefaultMaxMessageBytes caps the size of one streamed wire message.
	DefaultMaxMessageBytes = 4 * 1024 * 1024
	// DefaultBindAddress is the streaming server's listen address.
	DefaultBindAddress = ":50051"
)

// DefaultNumWorkers returns the default worker pool size, one less than the
// available parallelism so the consumer thread keeps a core.
func DefaultNumWorkers() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}

// Config is the configuration surface of the query engine.
type Config struct {
	// NumWorkers is the size of the iterator worker pool.
	NumWorkers int
	// BufferSize is the number of batches the bounded channel holds.
	BufferSize int
	// BatchSize is the maximum number of points per batch.
	BatchSize int
	// MaxMessageBytes caps one wire message of the streaming transport.
	MaxMessageBytes int
	// BindAddress is the streaming server's listen address.
	BindAddress string
}

// DefaultConfig returns a config with every knob at its default.
func DefaultConfig() *Config {
	return &Config{
		NumWorkers:      DefaultNumWorkers(),
		BufferSize:      DefaultBufferSize,
		BatchSize:       DefaultBatchSize,
		MaxMessageBytes: DefaultMaxMessageBytes,
		BindAddress:     DefaultBindAddress,
	}
}

// Validate checks the config for nonsensical values.
func (c *Config) Validate() error {
	if c.NumWorkers <= 0 {
		return errors.Errorf("NumWorkers must be positive, got %d", c.NumWorkers)
	}
	if c.BufferSize <= 0 {
		return errors.Errorf("BufferSize must be positive, got %d", c.BufferSize)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("BatchSize must be positive, got %d", c.BatchSize)
	}
	if c.MaxMessageBytes <= 0 {
		return errors.Errorf("MaxMessageBytes must be positive, got %d", c.MaxMessageBytes)
	}
	if c.BindAddress == "" {
		return errors.New("BindAddress must not be empty")
	}
	return nil
}
