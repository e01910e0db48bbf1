package store

// s3.go stores artifacts as objects under a key prefix in one bucket. The
// same millisecond-prefixed keys as the disk backend keep names unique; a
// head check stands in for the exclusive create the filesystem gives us.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options configures the S3 backend.
type S3Options struct {
	Bucket       string
	Prefix       string // object key prefix, e.g. "artifacts"
	Region       string
	Endpoint     string // optional, for S3-compatible stores
	UsePathStyle bool
	DownloadPath string // URL path prefix clients fetch artifacts from
}

// S3Store keeps artifacts in an S3 bucket.
type S3Store struct {
	client       *s3.Client
	uploader     *manager.Uploader
	bucket       string
	prefix       string
	downloadPath string
}

// NewS3Store builds a client from the ambient AWS configuration.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 store: bucket is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return &S3Store{
		client:       client,
		uploader:     manager.NewUploader(client),
		bucket:       opts.Bucket,
		prefix:       strings.Trim(opts.Prefix, "/"),
		downloadPath: opts.DownloadPath,
	}, nil
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *S3Store) locatorFor(key string) string {
	return s.downloadPath + "/" + key
}

func (s *S3Store) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *S3Store) Save(ctx context.Context, name string, r io.Reader) (Artifact, error) {
	base := sanitizeName(name)
	millis := time.Now().UnixMilli()

	var key string
	for attempt := int64(0); ; attempt++ {
		key = fmt.Sprintf("%d_%s", millis+attempt, base)
		taken, err := s.exists(ctx, key)
		if err != nil {
			return Artifact{}, fmt.Errorf("check artifact %s: %w", key, err)
		}
		if !taken {
			break
		}
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        r,
		ContentType: aws.String(contentTypeFor(base)),
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("upload artifact %s: %w", key, err)
	}
	return Artifact{Key: key, Name: base, Locator: s.locatorFor(key)}, nil
}

func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, Info, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return nil, Info{}, fmt.Errorf("open artifact %s: %w", key, err)
	}

	info := Info{
		Key:         key,
		Name:        displayName(key),
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		ModTime:     aws.ToTime(out.LastModified),
	}
	if info.ContentType == "" {
		info.ContentType = contentTypeFor(key)
	}
	return out.Body, info, nil
}

func (s *S3Store) Remove(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("remove artifact %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context) ([]Info, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix + "/")
	}

	var infos []Info
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list artifacts: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.prefix != "" {
				key = strings.TrimPrefix(key, s.prefix+"/")
			}
			if key == "" {
				continue
			}
			infos = append(infos, Info{
				Key:         key,
				Name:        displayName(key),
				Size:        aws.ToInt64(obj.Size),
				ContentType: contentTypeFor(key),
				ModTime:     aws.ToTime(obj.LastModified),
			})
		}
	}
	return infos, nil
}
