package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/pithecene-io/bucketfile/bucketfile"
	"github.com/pithecene-io/bucketfile/internal/tabular"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type app struct {
	handler *bucketfile.Handler
	out     io.Writer
	logger  *slog.Logger
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "ls":
		return a.ls(ctx, rest)
	case "read":
		return a.read(ctx, rest)
	case "chunks":
		return a.chunks(ctx, rest)
	case "put":
		return a.put(ctx, rest)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// ls prints one catalog per keyword as a JSON object keyed by keyword.
// With no keywords every file under prefix is listed.
func (a *app) ls(ctx context.Context, args []string) error {
	fs := newFlagSet("ls")
	latest := fs.Bool("latest", false, "keep only the most recent file per keyword")
	if err := fs.Parse(args); err != nil || fs.NArg() < 1 {
		return fmt.Errorf("%w: ls <prefix> [keyword...]", errUsage)
	}
	prefix, keywords := fs.Arg(0), fs.Args()[1:]
	if len(keywords) == 0 {
		keywords = []string{"*"}
	}

	catalogs, err := a.handler.RetrieveFiles(ctx, prefix, keywords)
	if err != nil {
		return err
	}
	if *latest {
		for k, c := range catalogs {
			if c.Len() == 0 {
				continue
			}
			if catalogs[k], err = c.Latest(); err != nil {
				return err
			}
		}
	}
	return a.writeJSON(catalogs)
}

// read decodes one whole file and prints it: tables as CSV, JSON and XML
// as indented JSON, text verbatim.
func (a *app) read(ctx context.Context, args []string) error {
	fs := newFlagSet("read")
	encoding := fs.String("encoding", "", "character encoding override for csv and txt")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return fmt.Errorf("%w: read <key>", errUsage)
	}

	ref := bucketfile.NewFileRef(fs.Arg(0), "")
	var opts []bucketfile.Option
	if *encoding != "" {
		opts = append(opts, bucketfile.WithEncoding(*encoding))
	}
	doc, err := a.handler.ReadFile(ctx, ref, opts...)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%s: %w or not readable", ref.Location(), bucketfile.ErrNotFound)
	}
	return a.printDocument(doc)
}

func (a *app) printDocument(doc *bucketfile.Document) error {
	switch {
	case doc.Frame != nil:
		return tabular.Write(a.out, doc.Frame.Columns, doc.Frame.Rows)
	case doc.Sheets != nil:
		for _, name := range doc.SheetOrder {
			f := doc.Sheets[name]
			if _, err := fmt.Fprintf(a.out, "# sheet: %s\n", name); err != nil {
				return err
			}
			if err := tabular.Write(a.out, f.Columns, f.Rows); err != nil {
				return err
			}
		}
		return nil
	case doc.Format == bucketfile.FormatJSON, doc.Format == bucketfile.FormatJSONL:
		return a.writeJSON(doc.Value)
	case doc.Format == bucketfile.FormatXML:
		return a.writeJSON(doc.Tree)
	}
	_, err := io.WriteString(a.out, doc.Text)
	return err
}

// chunks streams a CSV object and prints the reassembled rows as CSV, the
// header once. A summary is logged per frame.
func (a *app) chunks(ctx context.Context, args []string) error {
	fs := newFlagSet("chunks")
	chunkSize := fs.Int("chunk-size", 0, "bytes per fetched chunk (default from BUCKETFILE_CHUNK_SIZE)")
	encoding := fs.String("encoding", "", "character encoding override")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return fmt.Errorf("%w: chunks <key>", errUsage)
	}

	var opts []bucketfile.Option
	if *chunkSize > 0 {
		opts = append(opts, bucketfile.WithChunkSize(*chunkSize))
	}
	if *encoding != "" {
		opts = append(opts, bucketfile.WithEncoding(*encoding))
	}

	cr, err := a.handler.ReadChunks(ctx, bucketfile.NewFileRef(fs.Arg(0), ""), opts...)
	if err != nil {
		return err
	}

	frames, rows := 0, 0
	headerWritten := false
	for f, err := range cr.Frames() {
		if err != nil {
			return err
		}
		frames++
		rows += f.Len()
		a.logger.Debug("frame", "index", frames, "rows", f.Len())

		columns := f.Columns
		if headerWritten {
			columns = nil
		}
		if len(columns) == 0 && f.Empty() {
			continue
		}
		if err := tabular.Write(a.out, columns, f.Rows); err != nil {
			return err
		}
		headerWritten = headerWritten || len(columns) > 0
	}
	a.logger.Info("chunked read complete", "key", fs.Arg(0), "frames", frames, "rows", rows)
	return nil
}

// put uploads a local file to dir/name. Tabular sources are re-encoded in
// the format named by the target extension; JSON and JSON Lines are
// re-encoded; anything else is uploaded as text.
func (a *app) put(ctx context.Context, args []string) error {
	fs := newFlagSet("put")
	if err := fs.Parse(args); err != nil || fs.NArg() < 2 || fs.NArg() > 3 {
		return fmt.Errorf("%w: put <local-file> <dir> [name]", errUsage)
	}
	local, dir := fs.Arg(0), fs.Arg(1)
	name := filepath.Base(local)
	if fs.NArg() == 3 {
		name = fs.Arg(2)
	}

	data, err := os.ReadFile(local)
	if err != nil {
		return err
	}

	doc, err := bucketfile.Decode(filepath.Base(local), data, "")
	if err != nil {
		a.logger.Debug("uploading as text", "file", local, "reason", err)
		return a.handler.WriteText(ctx, string(data), name, dir)
	}

	frame := doc.Frame
	if frame == nil && len(doc.SheetOrder) > 0 {
		a.logger.Warn("multi-sheet workbook, uploading first sheet only", "sheet", doc.SheetOrder[0])
		frame = doc.Sheets[doc.SheetOrder[0]]
	}
	switch {
	case frame != nil:
		err := a.handler.WriteFrame(ctx, frame, name, dir)
		if !errors.Is(err, bucketfile.ErrUnsupportedFormat) {
			return err
		}
	case doc.Format == bucketfile.FormatJSON:
		return a.handler.WriteJSON(ctx, doc.Value, name, dir)
	case doc.Format == bucketfile.FormatJSONL:
		records, _ := doc.Value.([]any)
		return a.handler.WriteRecords(ctx, records, name, dir)
	}
	return a.handler.WriteText(ctx, string(data), name, dir)
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
