// Package archive keeps a copy of every saved document in S3.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ContentType is set on every archived document.
const ContentType = "application/x-tex"

// Archiver stores a complete document for a run.
type Archiver interface {
	Put(ctx context.Context, scriptID, runID, document string) (string, error)
}

// PutObjectAPI is the subset of the S3 client used here.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Error is a failed archive operation.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("archive.%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config configures the S3 archive.
type Config struct {
	Bucket string
	Prefix string
	Region string
	API    PutObjectAPI // Optional (tests)
	Logger *slog.Logger
}

// S3Archive writes documents to {prefix}{scriptId}/{runId}.tex.
type S3Archive struct {
	api    PutObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

// New creates an S3 archive. It returns nil, nil when no bucket is
// configured, which disables archiving.
func New(ctx context.Context, cfg Config) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	api := cfg.API
	if api == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		api = s3.NewFromConfig(awsCfg)
	}

	return &S3Archive{
		api:    api,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: cfg.Logger,
	}, nil
}

// Key returns the object key for a run.
func (a *S3Archive) Key(scriptID, runID string) string {
	return a.prefix + strings.ReplaceAll(scriptID, "/", "_") + "/" + runID + ".tex"
}

// Put uploads document and returns its key.
func (a *S3Archive) Put(ctx context.Context, scriptID, runID, document string) (string, error) {
	key := a.Key(scriptID, runID)
	_, err := a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(document),
		ContentType: aws.String(ContentType),
		Metadata: map[string]string{
			"script-id": scriptID,
			"run-id":    runID,
		},
	})
	if err != nil {
		return "", &Error{Op: "Put", Key: key, Err: err}
	}
	a.logger.Info("archived document", "bucket", a.bucket, "key", key, "bytes", len(document))
	return key, nil
}
