package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
)

const (
	keyPrefix = "blobs/"

	metaOriginalName = "original-name"
	metaSize         = "size"
)

// S3Config holds connection settings for an S3-compatible endpoint (MinIO in dev).
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// s3API is the subset of *s3.Client used by S3Store.
type s3API interface {
	manager.UploadAPIClient
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// uploader is implemented by *manager.Uploader.
type uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newUploader = func(c s3API) uploader {
		return manager.NewUploader(c)
	}
)

// S3Store stores blobs as objects under blobs/<id> in a single bucket.
type S3Store struct {
	client   s3API
	uploader uploader
	bucket   string
	region   string
}

var _ Store = (*S3Store)(nil)

// NewS3Store builds an S3 client with static credentials and a custom endpoint.
func NewS3Store(ctx context.Context, c S3Config) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKey,
			c.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Store{
		client:   client,
		uploader: newUploader(client),
		bucket:   c.Bucket,
		region:   c.Region,
	}, nil
}

func objectKey(id string) string {
	return keyPrefix + id
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("%w: head bucket: %w", common.ErrStorageUnavailable, err)
	}

	in := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if s.region != "" && s.region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, in); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("%w: create bucket: %w", common.ErrStorageUnavailable, err)
	}
	return nil
}

// Put implements Store. The uploader aborts multipart uploads on failure.
func (s *S3Store) Put(ctx context.Context, r io.Reader, meta Metadata) (PutResult, error) {
	id := newID()
	mime := meta.MimeType
	if mime == "" {
		mime = DefaultMimeType
	}

	src := &sourceReader{ctx: ctx, r: r}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey(id)),
		Body:        src,
		ContentType: aws.String(mime),
		Metadata: map[string]string{
			metaOriginalName: url.QueryEscape(meta.OriginalName),
			metaSize:         strconv.FormatInt(meta.Size, 10),
		},
	})
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return PutResult{}, ctx.Err()
		case src.err != nil:
			return PutResult{}, fmt.Errorf("%w: %w", common.ErrReadError, src.err)
		default:
			return PutResult{}, fmt.Errorf("%w: upload: %w", common.ErrStorageUnavailable, err)
		}
	}

	return PutResult{ID: id, Size: src.n}, nil
}

// Stat implements Store.
func (s *S3Store) Stat(ctx context.Context, id string) (Metadata, error) {
	if !ValidID(id) {
		return Metadata{}, common.ErrorNotFound
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(id)),
	})
	if err != nil {
		return Metadata{}, classifyS3Error("head object", err)
	}
	return metadataFrom(out.Metadata, out.ContentType, out.ContentLength, out.LastModified), nil
}

// Open implements Store.
func (s *S3Store) Open(ctx context.Context, id string) (io.ReadCloser, Metadata, error) {
	if !ValidID(id) {
		return nil, Metadata{}, common.ErrorNotFound
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(id)),
	})
	if err != nil {
		return nil, Metadata{}, classifyS3Error("get object", err)
	}
	meta := metadataFrom(out.Metadata, out.ContentType, out.ContentLength, out.LastModified)
	return &ctxReadCloser{ctx: ctx, rc: out.Body}, meta, nil
}

// Delete implements Store.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	if !ValidID(id) {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(id)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("%w: delete object: %w", common.ErrStorageUnavailable, err)
	}
	return nil
}

// List implements Store.
func (s *S3Store) List(ctx context.Context) ([]string, error) {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(keyPrefix),
	})

	var ids []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list objects: %w", common.ErrStorageUnavailable, err)
		}
		for _, obj := range page.Contents {
			id := strings.TrimPrefix(aws.ToString(obj.Key), keyPrefix)
			if ValidID(id) {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func metadataFrom(userMeta map[string]string, contentType *string, length *int64, modified *time.Time) Metadata {
	m := Metadata{
		MimeType: aws.ToString(contentType),
		Size:     aws.ToInt64(length),
	}
	if m.MimeType == "" {
		m.MimeType = DefaultMimeType
	}
	if name, err := url.QueryUnescape(userMeta[metaOriginalName]); err == nil {
		m.OriginalName = name
	}
	if modified != nil {
		m.CreatedAt = *modified
	}
	return m
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func classifyS3Error(op string, err error) error {
	if isNotFound(err) {
		return common.ErrorNotFound
	}
	return fmt.Errorf("%w: %s: %w", common.ErrStorageUnavailable, op, err)
}
