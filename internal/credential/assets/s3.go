package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Presigner is the subset of *s3.PresignClient used for download links.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config is the connection and bucket configuration. An empty Endpoint uses AWS.
type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	LinkTTL   time.Duration
}

// S3Store publishes objects to an S3-compatible bucket. Objects are
// write-once; a key that already exists is not uploaded again.
type S3Store struct {
	client  S3API
	presign Presigner
	bucket  string
	linkTTL time.Duration
}

// NewS3Client builds an S3 client with static credentials and path-style
// addressing, which MinIO requires.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewS3Store(client S3API, presign Presigner, bucket string, linkTTL time.Duration) *S3Store {
	if linkTTL <= 0 {
		linkTTL = 15 * time.Minute
	}
	return &S3Store{client: client, presign: presign, bucket: bucket, linkTTL: linkTTL}
}

func (s *S3Store) Put(ctx context.Context, prefix, contentType string, data []byte) (string, error) {
	key := ContentKey(prefix, data)
	pointer := fmt.Sprintf("s3://%s/%s", s.bucket, key)

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return pointer, nil
	}
	if !isNotFound(err) {
		return "", fmt.Errorf("%w: head %s: %w", ErrUnavailable, key, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %w", ErrUnavailable, key, err)
	}
	return pointer, nil
}

func (s *S3Store) Get(ctx context.Context, pointer string) ([]byte, string, error) {
	key, err := s.keyOf(pointer)
	if err != nil {
		return nil, "", err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("%w: get %s: %w", ErrUnavailable, key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: read %s: %w", ErrUnavailable, key, err)
	}
	return data, aws.ToString(out.ContentType), nil
}

// Link returns a time-limited download URL for pointer.
func (s *S3Store) Link(ctx context.Context, pointer string) (string, error) {
	if s.presign == nil {
		return pointer, nil
	}
	key, err := s.keyOf(pointer)
	if err != nil {
		return "", err
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.linkTTL))
	if err != nil {
		return "", fmt.Errorf("%w: presign %s: %w", ErrUnavailable, key, err)
	}
	return req.URL, nil
}

func (s *S3Store) keyOf(pointer string) (string, error) {
	key, ok := strings.CutPrefix(pointer, "s3://"+s.bucket+"/")
	if !ok || key == "" {
		return "", ErrBadPointer
	}
	return key, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}
