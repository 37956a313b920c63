// Package mirror copies the user's vault files to another storage target:
// a local directory, an S3 bucket or an Azure Blob container.
package mirror

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
)

var (
	ErrUnknownScheme  = errors.New("unsupported mirror destination")
	ErrMissingBucket  = errors.New("mirror destination has no bucket or container")
	ErrUnsafeKey      = errors.New("file name escapes the mirror destination")
	ErrAzureNoAccount = errors.New("AZURE_STORAGE_ACCOUNT_URL is required for azblob destinations")
)

// Sink stores mirrored files.
type Sink interface {
	Put(ctx context.Context, key string, data []byte) error
	String() string
}

// Options holds the sink settings read from the environment.
type Options struct {
	AzureAccountURL  string `env:"AZURE_STORAGE_ACCOUNT_URL"`
	AzureSASToken    string `env:"AZURE_STORAGE_SAS_TOKEN"`
	AzureAccountName string `env:"AZURE_STORAGE_ACCOUNT"`
	AzureAccountKey  string `env:"AZURE_STORAGE_KEY"`

	S3Region       string `env:"AWS_REGION" envDefault:"us-east-1"`
	S3Endpoint     string `env:"CLOUDVAULT_S3_ENDPOINT"`
	S3UsePathStyle bool   `env:"CLOUDVAULT_S3_PATH_STYLE"`
	S3AccessKey    string `env:"CLOUDVAULT_S3_ACCESS_KEY"`
	S3SecretKey    string `env:"CLOUDVAULT_S3_SECRET_KEY"`
}

// OptionsFromEnv parses Options from the process environment.
func OptionsFromEnv() (Options, error) {
	var opts Options
	if err := env.Parse(&opts); err != nil {
		return opts, fmt.Errorf("failed to parse mirror environment: %w", err)
	}
	return opts, nil
}

// Destination is a parsed mirror target.
type Destination struct {
	Scheme string // "dir", "s3" or "azblob"
	Bucket string // bucket or container; empty for dir
	Prefix string // key prefix, or the directory for dir
}

// ParseDestination parses "s3://bucket/prefix", "azblob://container/prefix"
// or a plain directory path.
func ParseDestination(raw string) (Destination, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Destination{}, fmt.Errorf("%w: empty", ErrUnknownScheme)
	}

	if !strings.Contains(raw, "://") {
		return Destination{Scheme: "dir", Prefix: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Destination{}, fmt.Errorf("invalid mirror destination %q: %w", raw, err)
	}

	switch u.Scheme {
	case "s3", "azblob":
	case "file":
		return Destination{Scheme: "dir", Prefix: u.Path}, nil
	default:
		return Destination{}, fmt.Errorf("%w: %s", ErrUnknownScheme, u.Scheme)
	}

	if u.Host == "" {
		return Destination{}, ErrMissingBucket
	}
	return Destination{
		Scheme: u.Scheme,
		Bucket: u.Host,
		Prefix: strings.Trim(u.Path, "/"),
	}, nil
}

// Open creates the sink for dest. httpClient carries the configured proxy
// and is shared with the cloud SDKs.
func Open(ctx context.Context, dest Destination, opts Options, httpClient *nethttp.Client) (Sink, error) {
	switch dest.Scheme {
	case "dir":
		return NewDirSink(dest.Prefix)
	case "s3":
		return NewS3Sink(ctx, dest.Bucket, dest.Prefix, opts, httpClient)
	case "azblob":
		return NewAzureSink(dest.Bucket, dest.Prefix, opts, httpClient)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownScheme, dest.Scheme)
	}
}

// objectKey joins prefix and a vault file name, rejecting names that would
// climb out of the prefix.
func objectKey(prefix, name string) (string, error) {
	var parts []string
	for _, seg := range strings.Split(strings.ReplaceAll(name, `\`, "/"), "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", fmt.Errorf("%w: %s", ErrUnsafeKey, name)
		}
		parts = append(parts, seg)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnsafeKey, name)
	}

	key := strings.Join(parts, "/")
	if prefix != "" {
		key = prefix + "/" + key
	}
	return key, nil
}
