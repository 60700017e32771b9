package ghtex

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MetricCepheid/Guitar-Hero-PC-Texture-Utilities/internal/dds"
)

// Archive is a game archive loaded fully into memory. The backing bytes
// are treated as immutable; Repack mutates a fresh copy and leaves the
// original untouched.
type Archive struct {
	name   string
	data   []byte
	logger *slog.Logger
}

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger for extraction and repack events.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// Open reads the archive file at path into memory.
func Open(path string, opts ...Option) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ghtex: read archive: %w", err)
	}
	return New(filepath.Base(path), data, opts...), nil
}

// New wraps in-memory archive bytes. The name labels the manifest heading
// and log records; data is retained and must not be modified by the caller.
func New(name string, data []byte, opts ...Option) *Archive {
	a := &Archive{
		name: name,
		data: data,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// Name returns the label the archive was opened with.
func (a *Archive) Name() string { return a.name }

// Size returns the archive length in bytes.
func (a *Archive) Size() int64 { return int64(len(a.data)) }

// Offsets returns the byte position of every DDS signature in the archive,
// in ascending order. Signatures that happen to occur inside another
// texture's payload are reported too; exact spans come from the headers.
func (a *Archive) Offsets() []int64 {
	return dds.Scan(a.data)
}
