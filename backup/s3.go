package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/warp/absence-tracker/absence"
)

// S3Config selects an S3-compatible bucket (AWS S3 or MinIO). Static keys
// are optional; the default credentials chain is used otherwise.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
}

// S3Sink keeps archives as objects under Prefix in a single bucket.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ Sink = (*S3Sink)(nil)

// NewS3Sink loads the AWS configuration and builds the client.
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3Sink(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Sink(client *s3.Client, bucket, prefix string) *S3Sink {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Sink{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Sink) Driver() Driver { return DriverS3 }

func (s *S3Sink) Put(ctx context.Context, key string, r io.Reader) (Archive, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return Archive{}, &absence.ValidationError{Field: "key", Message: err.Error()}
	}

	// A seekable body lets the SDK sign and checksum without buffering twice.
	body, err := io.ReadAll(r)
	if err != nil {
		return Archive{}, fmt.Errorf("failed to read archive: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.prefix + k),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentTypeFor(k)),
	})
	if err != nil {
		return Archive{}, fmt.Errorf("failed to upload archive: %w", err)
	}
	return Archive{Key: k, Size: int64(len(body))}, nil
}

func (s *S3Sink) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return nil, &absence.ValidationError{Field: "key", Message: err.Error()}
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + k),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, &absence.NotFoundError{Kind: "backup", ID: k}
		}
		return nil, fmt.Errorf("failed to download archive: %w", err)
	}
	return out.Body, nil
}

func (s *S3Sink) List(ctx context.Context) ([]Archive, error) {
	var (
		archives []Archive
		token    *string
	)
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list backups: %w", err)
		}
		for _, obj := range out.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if !isArchiveName(key) {
				continue
			}
			archives = append(archives, Archive{
				Key:       key,
				Size:      aws.ToInt64(obj.Size),
				CreatedAt: aws.ToTime(obj.LastModified),
			})
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Slice(archives, func(i, j int) bool { return archives[i].Key < archives[j].Key })
	return archives, nil
}

// isNotFound matches both the typed NoSuchKey error and bare 404 responses
// from S3-compatible servers that send no error body.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound
}

func contentTypeFor(key string) string {
	if strings.HasSuffix(key, ".xz") {
		return "application/x-xz"
	}
	return "application/json"
}
