package bucketfile

import (
	"errors"
	"fmt"
	"log/slog"
)

// readerConfig holds settings for a Reader and its individual reads.
type readerConfig struct {
	logger    *slog.Logger
	chunkSize int
	encoding  string
}

// writerConfig holds settings for a Writer.
type writerConfig struct {
	logger *slog.Logger
}

// Option configures a Reader, a Writer, or a single read.
// Options implement methods for the targets they support.
// Using an option with an unsupported target returns an error.
type Option interface {
	applyReader(*readerConfig) error
	applyWriter(*writerConfig) error
}

// ErrOptionNotValidForWriter indicates a read-only option passed to a writer.
var ErrOptionNotValidForWriter = errors.New("option not valid for writer")

// loggerOption implements Option for WithLogger.
type loggerOption struct {
	logger *slog.Logger
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return &loggerOption{logger: l}
}

func (o *loggerOption) applyReader(cfg *readerConfig) error {
	if o.logger == nil {
		return fmt.Errorf("WithLogger: %w: nil logger", ErrInvalidInput)
	}
	cfg.logger = o.logger
	return nil
}

func (o *loggerOption) applyWriter(cfg *writerConfig) error {
	if o.logger == nil {
		return fmt.Errorf("WithLogger: %w: nil logger", ErrInvalidInput)
	}
	cfg.logger = o.logger
	return nil
}

// chunkSizeOption implements Option for WithChunkSize (reader-only).
type chunkSizeOption struct {
	size int
}

// WithChunkSize sets the number of bytes fetched per chunk by ReadChunks.
// Default: DefaultChunkSize.
func WithChunkSize(n int) Option {
	return &chunkSizeOption{size: n}
}

func (o *chunkSizeOption) applyReader(cfg *readerConfig) error {
	if o.size <= 0 {
		return fmt.Errorf("WithChunkSize: %w: %d", ErrInvalidInput, o.size)
	}
	cfg.chunkSize = o.size
	return nil
}

func (o *chunkSizeOption) applyWriter(*writerConfig) error {
	return fmt.Errorf("WithChunkSize: %w", ErrOptionNotValidForWriter)
}

// encodingOption implements Option for WithEncoding (reader-only).
type encodingOption struct {
	label string
}

// WithEncoding decodes text with the named encoding (for example
// "windows-1252") instead of detecting it. Default: detect.
func WithEncoding(label string) Option {
	return &encodingOption{label: label}
}

func (o *encodingOption) applyReader(cfg *readerConfig) error {
	cfg.encoding = o.label
	return nil
}

func (o *encodingOption) applyWriter(*writerConfig) error {
	return fmt.Errorf("WithEncoding: %w", ErrOptionNotValidForWriter)
}
