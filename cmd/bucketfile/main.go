// Command bucketfile lists, reads and uploads files in an object store
// bucket.
//
// Usage:
//
//	bucketfile ls [-latest] <prefix> [keyword...]
//	bucketfile read [-encoding label] <key>
//	bucketfile chunks [-chunk-size n] [-encoding label] <key>
//	bucketfile put <local-file> <dir> [name]
//
// Configuration comes from BUCKETFILE_* environment variables and an
// optional .env file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pithecene-io/bucketfile/bucketfile"
	"github.com/pithecene-io/bucketfile/internal/config"
	"github.com/pithecene-io/bucketfile/internal/logging"
)

const usage = `usage: bucketfile <command> [flags] [args]

commands:
  ls [-latest] <prefix> [keyword...]         list matching files as JSON catalogs
  read [-encoding label] <key>               decode a whole file to stdout
  chunks [-chunk-size n] [-encoding label] <key>
                                             stream a csv file frame by frame
  put <local-file> <dir> [name]              upload a local file
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		slog.Error("command failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logging.Setup(level, cfg.LogFormat, stderr)
	logger.Debug("configuration loaded", "backend", cfg.Backend, "bucket", cfg.Bucket, "env_file", cfg.EnvFileFound())

	conn, err := newConnector(ctx, cfg)
	if err != nil {
		return err
	}
	h, err := bucketfile.NewHandler(conn, cfg.Bucket,
		bucketfile.WithLogger(logger),
		bucketfile.WithChunkSize(cfg.ChunkSize),
	)
	if err != nil {
		return err
	}

	a := &app{handler: h, out: stdout, logger: logger}
	return a.dispatch(ctx, args)
}
