package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/wangwalon/myname-world/internal/aws"
)

// Uploader puts rendered images into the blob bucket and derives the public
// retrieval URL. Single attempt: a failed upload propagates to the caller,
// which marks the order failed.
type Uploader struct {
	client        aws.S3API
	bucket        string
	publicBaseURL string // optional CDN/front URL; falls back to the regional S3 URL
}

// NewUploader returns an Uploader bound to a bucket. publicBaseURL may be
// empty, in which case the virtual-hosted S3 URL form is used.
func NewUploader(client aws.S3API, bucket, publicBaseURL string) *Uploader {
	return &Uploader{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}
}

// ObjectKey derives the blob key for an order.
func ObjectKey(sessionID string) string {
	return "renders/" + sessionID + ".png"
}

// UploadPNG stores the image under the order's key and returns its public URL.
func (u *Uploader) UploadPNG(ctx context.Context, sessionID string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to upload empty image for %s", sessionID)
	}

	key := ObjectKey(sessionID)
	contentType := "image/png"

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &u.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return u.publicURL(key), nil
}

func (u *Uploader) publicURL(key string) string {
	if u.publicBaseURL != "" {
		return u.publicBaseURL + "/" + key
	}
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, region, key)
}
