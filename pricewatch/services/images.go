package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	imageFetchTimeout = 10 * time.Second
	maxImageBytes     = 5 << 20
)

// ImageStore is the slice of the image pipeline the bot and the notifier
// consume. *ImageService is the Spaces-backed implementation.
type ImageStore interface {
	MirrorProductImage(ctx context.Context, productID, sourceURL string) (string, error)
	DeleteProductImage(ctx context.Context, productID string) error
}

// ImageService mirrors marketplace product images into a Spaces bucket so
// notification embeds keep rendering after the marketplace rotates its CDN
// URLs.
type ImageService struct {
	client    *s3.Client
	bucket    string
	region    string
	imageRoot string
	http      *http.Client
}

func NewImageService(spacesKey, spacesSecret, region, bucket, imageRoot string) (*ImageService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(spacesKey, spacesSecret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load Spaces config: %w", err)
	}

	return &ImageService{
		client:    s3.NewFromConfig(cfg),
		bucket:    bucket,
		region:    region,
		imageRoot: strings.Trim(imageRoot, "/"),
		http:      &http.Client{Timeout: imageFetchTimeout},
	}, nil
}

func (s *ImageService) key(productID string) string {
	if s.imageRoot == "" {
		return productID + ".jpg"
	}
	return s.imageRoot + "/" + productID + ".jpg"
}

// PublicURL returns the CDN URL for a mirrored product image.
func (s *ImageService) PublicURL(productID string) string {
	return fmt.Sprintf("https://%s.%s.cdn.digitaloceanspaces.com/%s", s.bucket, s.region, s.key(productID))
}

// MirrorProductImage downloads sourceURL and uploads it under the product id,
// returning the mirrored public URL. Re-mirroring the same product overwrites
// the previous object.
func (s *ImageService) MirrorProductImage(ctx context.Context, productID, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image fetch returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read image body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	key := s.key(productID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         "public-read",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	return s.PublicURL(productID), nil
}

// DeleteProductImage removes a mirrored image, used when a product is
// untracked.
func (s *ImageService) DeleteProductImage(ctx context.Context, productID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(productID)),
	})
	return err
}
