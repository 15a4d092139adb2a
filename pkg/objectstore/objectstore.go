package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Locator addresses a prefix in the remote state store, parsed from the
// "store://bucket/prefix" form found in the boot configuration.
type Locator struct {
	Bucket string
	Prefix string
}

// ParseLocator parses a store://bucket/prefix locator. The s3:// scheme is
// accepted as an alias.
func ParseLocator(raw string) (Locator, error) {
	var rest string
	switch {
	case strings.HasPrefix(raw, "store://"):
		rest = strings.TrimPrefix(raw, "store://")
	case strings.HasPrefix(raw, "s3://"):
		rest = strings.TrimPrefix(raw, "s3://")
	default:
		return Locator{}, fmt.Errorf("unsupported locator scheme: %q", raw)
	}

	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Locator{}, fmt.Errorf("locator %q has no bucket", raw)
	}
	return Locator{Bucket: bucket, Prefix: strings.TrimSuffix(prefix, "/")}, nil
}

// Key resolves a relative key under the locator's prefix.
func (l Locator) Key(elem ...string) string {
	return path.Join(append([]string{l.Prefix}, elem...)...)
}

// Client is a read-only client for the remote state-store object layer.
type Client struct {
	s3 *s3.Client
}

// NewClient creates an object-store client for the given region.
func NewClient(ctx context.Context, region string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load SDK config: %w", err)
	}
	return &Client{s3: s3.NewFromConfig(cfg)}, nil
}

// Fetch returns the contents of the object at bucket/key.
func (c *Client) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// FetchToFile downloads the object at bucket/key to dest, creating parent
// directories as needed. An existing file is truncated.
func (c *Client) FetchToFile(ctx context.Context, bucket, key, dest string, mode os.FileMode) error {
	data, err := c.Fetch(ctx, bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
	}
	if err := os.WriteFile(dest, data, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}
