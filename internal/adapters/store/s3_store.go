package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/mikey/social-ads-predictor/internal/artifact"
	"go.uber.org/zap"
)

// S3API is the subset of the S3 client the store uses
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps artifacts as objects <prefix><name>/<version>.sapa with the
// latest version in <prefix><name>/latest. Single object writes are atomic,
// so the version object is written before the tag that points at it.
type S3Store struct {
	client S3API
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Store creates an S3 store using the default AWS credential chain
func NewS3Store(ctx context.Context, bucket, region, prefix string, logger *zap.Logger) (*S3Store, error) {
	if bucket == "" {
		return nil, errors.New("S3 bucket is required")
	}
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return NewS3StoreWithClient(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

// NewS3StoreWithClient creates an S3 store on top of an existing client
func NewS3StoreWithClient(client S3API, bucket, prefix string, logger *zap.Logger) *S3Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

// Get loads the artifact a reference points at
func (s *S3Store) Get(ctx context.Context, ref artifact.Ref) (*artifact.Artifact, error) {
	version := ref.Tag
	if ref.IsLatest() {
		b, err := s.getObject(ctx, s.latestKey(ref.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to read latest tag: %w", err)
		}
		version = strings.TrimSpace(string(b))
		if err := artifact.ValidateName(version); err != nil {
			return nil, fmt.Errorf("%w: latest tag: %v", artifact.ErrCorrupt, err)
		}
	}

	b, err := s.getObject(ctx, s.versionKey(ref.Name, version))
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return decode(b, ref)
}

// Save uploads the artifact and then the latest tag
func (s *S3Store) Save(ctx context.Context, a *artifact.Artifact) (*artifact.Handle, error) {
	b := artifact.Encode(a)
	if err := s.putObject(ctx, s.versionKey(a.Name, a.Version), b); err != nil {
		return nil, fmt.Errorf("failed to upload artifact: %w", err)
	}
	if err := s.putObject(ctx, s.latestKey(a.Name), []byte(a.Version+"\n")); err != nil {
		return nil, fmt.Errorf("failed to update latest tag: %w", err)
	}

	s.logger.Debug("Uploaded artifact",
		zap.String("bucket", s.bucket),
		zap.String("key", s.versionKey(a.Name, a.Version)),
		zap.Int("size", len(b)))

	h := a.Handle(int64(len(b)))
	return &h, nil
}

// List returns the stored versions of an artifact, newest first
func (s *S3Store) List(ctx context.Context, name string) ([]artifact.Handle, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + name + "/"),
	})

	var handles []artifact.Handle
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list artifacts: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, fileExt) {
				continue
			}
			version := strings.TrimSuffix(path.Base(key), fileExt)
			b, err := s.getObject(ctx, key)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				s.logger.Warn("Skipping unreadable artifact", zap.String("key", key), zap.Error(err))
				continue
			}
			a, err := decode(b, artifact.Ref{Name: name, Tag: version})
			if err != nil {
				s.logger.Warn("Skipping unreadable artifact", zap.String("key", key), zap.Error(err))
				continue
			}
			handles = append(handles, a.Handle(int64(len(b))))
		}
	}
	sortHandles(handles)
	return handles, nil
}

// Stop is a no-op; the AWS client holds no resources that need releasing
func (s *S3Store) Stop() {}

func (s *S3Store) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, artifact.ErrNotFound
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3Store) putObject(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return err
}

func (s *S3Store) versionKey(name, version string) string {
	return s.prefix + name + "/" + version + fileExt
}

func (s *S3Store) latestKey(name string) string {
	return s.prefix + name + "/" + artifact.LatestTag
}
