package metadata

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

// Client reads instance facts from the metadata endpoint. All methods are
// read-only GETs against the link-local service.
type Client struct {
	imds *imds.Client
}

// NewClient creates a metadata client using the ambient SDK configuration.
func NewClient(ctx context.Context) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load SDK config: %w", err)
	}
	return &Client{imds: imds.NewFromConfig(cfg)}, nil
}

// InstanceID returns the instance id from the identity document.
func (c *Client) InstanceID(ctx context.Context) (string, error) {
	doc, err := c.imds.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
	if err != nil {
		return "", fmt.Errorf("failed to fetch identity document: %w", err)
	}
	return doc.InstanceID, nil
}

// Region returns the region from the identity document.
func (c *Client) Region(ctx context.Context) (string, error) {
	doc, err := c.imds.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
	if err != nil {
		return "", fmt.Errorf("failed to fetch identity document: %w", err)
	}
	return doc.Region, nil
}

// LocalHostname returns the instance's local hostname.
func (c *Client) LocalHostname(ctx context.Context) (string, error) {
	out, err := c.imds.GetMetadata(ctx, &imds.GetMetadataInput{Path: "local-hostname"})
	if err != nil {
		return "", fmt.Errorf("failed to fetch local-hostname: %w", err)
	}
	defer out.Content.Close()

	data, err := io.ReadAll(out.Content)
	if err != nil {
		return "", fmt.Errorf("failed to read local-hostname: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// UserData returns the raw boot-configuration blob attached to the
// instance at launch.
func (c *Client) UserData(ctx context.Context) ([]byte, error) {
	out, err := c.imds.GetUserData(ctx, &imds.GetUserDataInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user data: %w", err)
	}
	defer out.Content.Close()

	data, err := io.ReadAll(out.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to read user data: %w", err)
	}
	return data, nil
}
