package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/zfogg/sidechain/profiles/internal/logger"
	"go.uber.org/zap"
)

// S3Options configures an S3Store
type S3Options struct {
	Region  string
	Bucket  string
	BaseURL string
	// Endpoint overrides the S3 endpoint (MinIO, LocalStack). Path-style
	// addressing is used when set. Over plain http the payload is sent
	// unsigned, otherwise the SDK reads the whole body to hash it before
	// sending and progress would jump to 100% up front.
	Endpoint string
}

// S3Store stores profile media in an S3 bucket
type S3Store struct {
	client  *s3.Client
	bucket  string
	region  string
	baseURL string
	putOpts []func(*s3.Options)
}

// NewS3Store creates a new S3-backed store using the default AWS credential chain
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(opts.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// checksums only when an operation requires one, so PutObject does
		// not pre-read the body
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	store := &S3Store{
		client:  client,
		bucket:  opts.Bucket,
		region:  opts.Region,
		baseURL: opts.BaseURL,
	}
	if strings.HasPrefix(opts.Endpoint, "http://") {
		store.putOpts = append(store.putOpts, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	}
	return store, nil
}

// Put uploads data under key in a single PutObject call
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string, onProgress ProgressFunc) (*PutResult, error) {
	if contentType == "" {
		contentType = getContentTypeForImage(filepath.Ext(key))
	}

	body := newProgressReader(data, onProgress)
	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		// the key is reused on re-upload, so clients must revalidate
		CacheControl: aws.String("no-cache"),
		Metadata: map[string]string{
			"file-type":        "profile-picture",
			"upload-timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}, s.putOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	logger.Log.Debug("Stored object",
		logger.WithKey(key),
		zap.String("bucket", s.bucket),
		zap.Int("size", len(data)),
	)

	return &PutResult{
		Key:  key,
		ETag: trimETag(aws.ToString(out.ETag)),
		Size: int64(len(data)),
	}, nil
}

// DownloadURL confirms the object exists and returns its public URL, versioned
// by ETag so a re-upload under the same key produces a new reference.
func (s *S3Store) DownloadURL(ctx context.Context, key string) (string, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("failed to resolve %s: %w", key, err)
	}
	return publicURL(s.baseURL, key, trimETag(aws.ToString(head.ETag))), nil
}

// CheckBucketAccess verifies that we can access the S3 bucket
func (s *S3Store) CheckBucketAccess(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("cannot access S3 bucket %s: %w", s.bucket, err)
	}
	return nil
}

func publicURL(baseURL, key, version string) string {
	u := fmt.Sprintf("%s/%s", strings.TrimSuffix(baseURL, "/"), key)
	if version != "" {
		u += "?v=" + url.QueryEscape(version)
	}
	return u
}

func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}

// getContentTypeForImage returns the MIME type for image file extensions
func getContentTypeForImage(extension string) string {
	switch strings.ToLower(extension) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}

// progressReader counts bytes as the SDK reads the request body. The SDK may
// seek back and re-read (retries, checksums), so the reported value only
// ever grows.
type progressReader struct {
	r          *bytes.Reader
	total      int64
	onProgress ProgressFunc

	mu       sync.Mutex
	reported int64
}

func newProgressReader(data []byte, onProgress ProgressFunc) *progressReader {
	return &progressReader{
		r:          bytes.NewReader(data),
		total:      int64(len(data)),
		onProgress: onProgress,
	}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.onProgress != nil {
		pos := p.total - int64(p.r.Len())
		p.mu.Lock()
		if pos > p.reported {
			p.reported = pos
			p.mu.Unlock()
			p.onProgress(pos, p.total)
		} else {
			p.mu.Unlock()
		}
	}
	return n, err
}

func (p *progressReader) Seek(offset int64, whence int) (int64, error) {
	return p.r.Seek(offset, whence)
}

var _ io.ReadSeeker = (*progressReader)(nil)
