// Package media uploads collected images to an S3-compatible object store.
package media

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	awssession "github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Store persists media bytes under a name and returns a public URL.
type Store interface {
	Store(ctx context.Context, data []byte, name string) (string, error)
}

// SpacesConfig points at an S3-compatible bucket (DigitalOcean Spaces).
type SpacesConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// SpacesStore implements Store over the S3 API.
type SpacesStore struct {
	client *s3.S3
	cfg    SpacesConfig
}

// NewSpacesStore builds an S3 client against the configured custom endpoint.
func NewSpacesStore(cfg SpacesConfig) (*SpacesStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("media: endpoint and bucket are required")
	}
	sess, err := awssession.NewSession(&aws.Config{
		Endpoint:    aws.String(cfg.Endpoint),
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("media: aws session: %w", err)
	}
	return &SpacesStore{client: s3.New(sess), cfg: cfg}, nil
}

func (s *SpacesStore) Store(ctx context.Context, data []byte, name string) (string, error) {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
		ACL:         aws.String("public-read"),
	})
	if err != nil {
		return "", fmt.Errorf("media: put object %s: %w", name, err)
	}
	return s.publicURL(name), nil
}

// publicURL composes the virtual-hosted bucket URL for an object key.
func (s *SpacesStore) publicURL(name string) string {
	u, err := url.Parse(s.cfg.Endpoint)
	if err != nil || u.Host == "" {
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + name
	}
	if strings.HasPrefix(u.Host, s.cfg.Bucket+".") {
		return fmt.Sprintf("%s://%s/%s", u.Scheme, u.Host, name)
	}
	return fmt.Sprintf("%s://%s.%s/%s", u.Scheme, s.cfg.Bucket, u.Host, name)
}
