package artifactstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"

	"github.com/stablegen/gateway/internal/config"
)

// S3Store keeps artifacts in an S3-compatible bucket under <folder>/<id>.png.
type S3Store struct {
	client *s3.Client
	cfg    *config.S3Config
}

func NewS3Store(ctx context.Context, cfg *config.S3Config) (*S3Store, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 config is not set")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*awsConfig.LoadOptions) error{awsConfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		credentialsProvider := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		opts = append(opts, awsConfig.WithCredentialsProvider(credentialsProvider))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointUrl != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointUrl)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client: s3Client,
		cfg:    cfg,
	}, nil
}

func (s *S3Store) prefix() string {
	folder := strings.Trim(s.cfg.Folder, "/")
	if folder == "" {
		return ""
	}
	return folder + "/"
}

func (s *S3Store) key(id string) string {
	return s.prefix() + FileName(id)
}

func (s *S3Store) Put(ctx context.Context, id string, content []byte) error {
	if !validID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, id)
	}

	mtype := mimetype.Detect(content).String()
	input := s3.PutObjectInput{
		Key:         aws.String(s.key(id)),
		ContentType: aws.String(mtype),
		Bucket:      aws.String(s.cfg.Bucket),
		Body:        bytes.NewReader(content),
	}
	if _, err := s.client.PutObject(ctx, &input); err != nil {
		return ioError("put", id, err)
	}

	return nil
}

func (s *S3Store) Get(ctx context.Context, id string) ([]byte, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	object, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, ioError("get", id, err)
	}
	defer object.Body.Close()

	content, err := io.ReadAll(object.Body)
	if err != nil {
		return nil, ioError("read", id, err)
	}

	return content, nil
}

func (s *S3Store) Exists(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, ioError("head", id, err)
	}

	return true, nil
}

func (s *S3Store) List(ctx context.Context) ([]ArtifactInfo, error) {
	prefix := s.prefix()
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(prefix),
	})

	var artifacts []ArtifactInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, ioError("list", prefix, err)
		}

		for _, object := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(object.Key), prefix)
			if !strings.HasSuffix(name, Extension) || strings.Contains(name, "/") {
				continue
			}

			artifacts = append(artifacts, ArtifactInfo{
				ID:         strings.TrimSuffix(name, Extension),
				Size:       aws.ToInt64(object.Size),
				ModifiedAt: aws.ToTime(object.LastModified),
			})
		}
	}

	return artifacts, nil
}

func (s *S3Store) Remove(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, id)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return ioError("delete", id, err)
	}

	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
