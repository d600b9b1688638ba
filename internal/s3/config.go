// Package s3 builds aws-sdk-go-v2 S3 clients for AWS and S3-compatible
// services (LocalStack, MinIO, Cloudflare R2).
package s3

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig holds configuration for creating an S3 client.
type ClientConfig struct {
	// Region is the AWS region (required).
	Region string

	// Endpoint is an optional custom endpoint URL for S3-compatible services.
	// Example: "http://localhost:4566" for LocalStack.
	Endpoint string

	// UsePathStyle enables path-style addressing instead of virtual-hosted style.
	// Required for LocalStack and MinIO with default config.
	UsePathStyle bool

	// AccessKeyID and SecretAccessKey select static credentials.
	// If both are empty, the default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
}

// Credentials returns the static provider for the configured keys, or nil
// when the default chain should be used.
func (c ClientConfig) Credentials() aws.CredentialsProvider {
	if c.AccessKeyID == "" && c.SecretAccessKey == "" {
		return nil
	}
	return credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, "")
}

// NewClient creates a new S3 client with the given configuration.
//
// For MinIO:
//
//	client, err := s3.NewClient(ctx, s3.ClientConfig{
//	    Region:          "us-east-1",
//	    Endpoint:        "http://localhost:9000",
//	    UsePathStyle:    true,
//	    AccessKeyID:     "minioadmin",
//	    SecretAccessKey: "minioadmin",
//	})
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	if cfg.Region == "" {
		return nil, errors.New("s3: region is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if creds := cfg.Credentials(); creds != nil {
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// LocalStack returns the client configuration for a local LocalStack:
// endpoint=http://localhost:4566, region=us-east-1, credentials=test/test.
func LocalStack() ClientConfig {
	return ClientConfig{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566",
		UsePathStyle:    true,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}
}

// MinIO returns the client configuration for a local MinIO:
// endpoint=http://localhost:9000, region=us-east-1, credentials=minioadmin/minioadmin.
func MinIO() ClientConfig {
	return ClientConfig{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
	}
}

// R2 returns the client configuration for Cloudflare R2.
// The accountID is your Cloudflare account ID; keys are R2 API tokens.
func R2(accountID, accessKeyID, secretAccessKey string) ClientConfig {
	return ClientConfig{
		Region:          "auto",
		Endpoint:        "https://" + accountID + ".r2.cloudflarestorage.com",
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
	}
}
