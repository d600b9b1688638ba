package bucketfile

import (
	"context"
	"errors"
)

// Handler pairs a Reader and a Writer over the same Connector and bucket.
//
// The connector is injected so callers decide how many clients exist;
// Handler holds no global state.
type Handler struct {
	*Reader
	*Writer
}

// NewHandler creates a Handler for bucket.
//
// Options apply to both halves; reader-only options such as WithChunkSize
// set the reader defaults and are not passed to the writer.
func NewHandler(conn Connector, bucket string, opts ...Option) (*Handler, error) {
	r, err := NewReader(conn, bucket, opts...)
	if err != nil {
		return nil, err
	}

	var writerOpts []Option
	for _, opt := range opts {
		if err := opt.applyWriter(&writerConfig{}); err != nil {
			if errors.Is(err, ErrOptionNotValidForWriter) {
				continue
			}
			return nil, err
		}
		writerOpts = append(writerOpts, opt)
	}
	w, err := NewWriter(conn, bucket, writerOpts...)
	if err != nil {
		return nil, err
	}
	return &Handler{Reader: r, Writer: w}, nil
}

// LatestFile returns the most recently modified object matching keyword
// under prefix, or ErrEmptyCatalog when nothing matches.
func (h *Handler) LatestFile(ctx context.Context, prefix, keyword string) (FileRef, error) {
	catalogs, err := h.RetrieveFiles(ctx, prefix, []string{keyword})
	if err != nil {
		return FileRef{}, err
	}
	latest, err := catalogs[keyword].Latest()
	if err != nil {
		return FileRef{}, err
	}
	return latest.At(0), nil
}
