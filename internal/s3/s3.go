// Package s3 mirrors recipe images from source sites into the app's bucket.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-resty/resty/v2"
	"github.com/windoze95/saltybytes-resolver/internal/config"
)

const maxImageBytes = 10 * 1024 * 1024

// Uploader is the part of the S3 upload manager the mirror uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// ImageMirror copies remote recipe images into S3.
type ImageMirror struct {
	bucket   string
	uploader Uploader
	client   *resty.Client
}

// newS3Client creates a new S3 client from the app config.
// When AWS access key and secret are provided, static credentials are used;
// otherwise the default credential chain is preserved (IAM role, instance
// profile, etc.) so ECS/EC2 task roles work without explicit keys.
func newS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.EnvVars.AWSRegion),
	}

	if cfg.EnvVars.AWSAccessKeyID != "" && cfg.EnvVars.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.EnvVars.AWSAccessKeyID,
			cfg.EnvVars.AWSSecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %v", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

// NewImageMirror creates an ImageMirror for the configured bucket.
func NewImageMirror(ctx context.Context, cfg *config.Config) (*ImageMirror, error) {
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewImageMirrorWithUploader(cfg.EnvVars.S3Bucket, manager.NewUploader(client), 15*time.Second), nil
}

// NewImageMirrorWithUploader creates an ImageMirror around an existing
// uploader.
func NewImageMirrorWithUploader(bucket string, uploader Uploader, timeout time.Duration) *ImageMirror {
	return &ImageMirror{
		bucket:   bucket,
		uploader: uploader,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "image/*"),
	}
}

// MirrorRecipeImage downloads imageURL and uploads it under the recipe's key,
// returning the S3 location.
func (m *ImageMirror) MirrorRecipeImage(ctx context.Context, recipeID uint, imageURL string) (string, error) {
	resp, err := m.client.R().SetContext(ctx).Get(imageURL)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("failed to download image: status %d", resp.StatusCode())
	}

	body := resp.Body()
	if len(body) == 0 || len(body) > maxImageBytes {
		return "", fmt.Errorf("image size %d out of range", len(body))
	}
	contentType := resp.Header().Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(body)
		if !strings.HasPrefix(contentType, "image/") {
			return "", fmt.Errorf("unexpected image content type %q", contentType)
		}
	}

	result, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(GenerateS3Key(recipeID, contentType)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %v", err)
	}

	return result.Location, nil
}

// GenerateS3Key generates the S3 key for a recipe image, given the recipe ID
// and the image content type.
func GenerateS3Key(recipeID uint, contentType string) string {
	ext := ".jpg"
	switch contentType {
	case "image/png":
		ext = ".png"
	case "image/webp":
		ext = ".webp"
	case "image/gif":
		ext = ".gif"
	}
	return fmt.Sprintf("recipes/%d/images/recipe_image_%d%s", recipeID, recipeID, ext)
}
