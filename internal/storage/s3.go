package storage

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// putObjectAPI is the slice of the S3 client S3Store needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Options struct {
	Bucket       string
	Region       string
	BaseEndpoint string // empty for AWS, set for MinIO and friends
	AccessKey    string
	SecretKey    string
	PublicURL    string
}

type S3Store struct {
	client    putObjectAPI
	bucket    string
	publicURL string
}

// NewS3Store builds an S3 client from static credentials. A custom endpoint
// switches to path-style addressing, which MinIO requires.
func NewS3Store(ctx context.Context, o S3Options) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(o.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.BaseEndpoint != "" {
			so.BaseEndpoint = aws.String(o.BaseEndpoint)
			so.UsePathStyle = true
		}
	})
	return newS3Store(client, o), nil
}

func newS3Store(client putObjectAPI, o S3Options) *S3Store {
	public := o.PublicURL
	if public == "" && o.BaseEndpoint != "" {
		public = strings.TrimRight(o.BaseEndpoint, "/") + "/" + o.Bucket
	}
	if public == "" {
		public = "https://" + o.Bucket + ".s3." + o.Region + ".amazonaws.com"
	}
	return &S3Store{client: client, bucket: o.Bucket, publicURL: strings.TrimRight(public, "/")}
}

func (s *S3Store) Save(ctx context.Context, name, contentType string, body io.Reader, size int64) (string, error) {
	key := "avatars/" + name
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", err
	}
	return s.publicURL + "/" + key, nil
}
