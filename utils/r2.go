// utils/r2.go
package utils

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ReceiptLinker turns a stored receipt reference into a URL an admin can open.
type ReceiptLinker interface {
	ReceiptURL(ctx context.Context, reference string) (string, time.Time, error)
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	// Endpoint overrides the account endpoint, e.g. for MinIO in development.
	Endpoint string
	TTL      time.Duration
}

// R2ReceiptSigner presigns GET requests for receipt objects kept in R2.
type R2ReceiptSigner struct {
	presigner *s3.PresignClient
	bucket    string
	ttl       time.Duration
}

func NewR2ReceiptSigner(ctx context.Context, c R2Config) (*R2ReceiptSigner, error) {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKeyID, c.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	ttl := c.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &R2ReceiptSigner{presigner: s3.NewPresignClient(client), bucket: c.Bucket, ttl: ttl}, nil
}

func (r *R2ReceiptSigner) ReceiptURL(ctx context.Context, reference string) (string, time.Time, error) {
	if IsAbsoluteURL(reference) {
		return reference, time.Time{}, nil
	}
	key := strings.TrimPrefix(reference, "/")
	req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(r.ttl))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to presign receipt %s: %w", key, err)
	}
	return req.URL, time.Now().Add(r.ttl), nil
}

// PassthroughReceipts serves references unchanged when R2 is not configured.
type PassthroughReceipts struct{}

func (PassthroughReceipts) ReceiptURL(ctx context.Context, reference string) (string, time.Time, error) {
	return reference, time.Time{}, nil
}

func IsAbsoluteURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
