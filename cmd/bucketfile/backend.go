package main

import (
	"context"
	"fmt"

	"github.com/pithecene-io/bucketfile/bucketfile"
	"github.com/pithecene-io/bucketfile/bucketfile/minio"
	s3store "github.com/pithecene-io/bucketfile/bucketfile/s3"
	"github.com/pithecene-io/bucketfile/internal/config"
	s3client "github.com/pithecene-io/bucketfile/internal/s3"
)

// newConnector builds the connector selected by cfg.Backend.
func newConnector(ctx context.Context, cfg *config.Config) (bucketfile.Connector, error) {
	switch cfg.Backend {
	case config.BackendS3:
		clientCfg := s3client.ClientConfig{
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			UsePathStyle:    cfg.PathStyle,
			AccessKeyID:     cfg.AccessKey,
			SecretAccessKey: cfg.SecretKey,
		}
		if cfg.R2AccountID != "" {
			clientCfg = s3client.R2(cfg.R2AccountID, cfg.AccessKey, cfg.SecretKey)
		}
		client, err := s3client.NewClient(ctx, clientCfg)
		if err != nil {
			return nil, fmt.Errorf("create s3 client: %w", err)
		}
		return s3store.New(client, s3store.Config{})

	case config.BackendMinIO:
		return minio.New(minio.Config{
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKey,
			SecretAccessKey: cfg.SecretKey,
			UseSSL:          cfg.UseSSL,
			Region:          cfg.Region,
		})

	case config.BackendFS:
		return bucketfile.NewFS(cfg.FSRoot)

	case config.BackendMemory:
		return bucketfile.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
