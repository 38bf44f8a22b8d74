// Package blobstore implements the content blob store: every downloaded and
// decompressed version file lands here, addressed by a storage key of the
// form {org-slug}/{entry-slug}/{external-version}/{filename}. It wraps the
// AWS S3 SDK so the same code talks to AWS S3, MinIO, or any other
// S3-compatible endpoint by swapping S3_ENDPOINT and enabling path-style
// addressing.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/biopkg/bdp/internal/config"
)

// MaxConcurrentUploads bounds the number of parts uploaded in parallel by
// the manager.Uploader for a single Put call.
const MaxConcurrentUploads = 5

var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	},
}

// ErrChecksumMismatch is returned by Put when the sha-256 of the bytes
// actually written doesn't match the checksum the caller asserted.
var ErrChecksumMismatch = errors.New("blobstore: checksum mismatch")

// ErrNotFound is returned by Get/Head when the key does not exist.
var ErrNotFound = errors.New("blobstore: object not found")

// ObjectMeta is the result of a Head call.
type ObjectMeta struct {
	Key           string
	Size          int64
	SHA256        string
	LastModified  time.Time
}

// Store is the blob store client used by the ingestion pipeline (to write
// version files) and the manifest resolver (to produce presigned download
// URLs). It is safe for concurrent use.
type Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	bucket   string
}

// New builds a Store from an S3Config. It does not verify connectivity;
// callers that need a fail-fast startup check should call Store.Ping.
func New(ctx context.Context, cfg config.S3Config) (*Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(sharedHTTPClient),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("blobstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &Store{
		client:   client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) { u.Concurrency = MaxConcurrentUploads }),
		presign:  s3.NewPresignClient(client),
		bucket:   cfg.Bucket,
	}, nil
}

// Ping checks that the configured bucket exists and is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("blobstore: bucket %q not reachable: %w", s.bucket, err)
	}
	return nil
}

// Put writes data under key and verifies it was written intact by
// recomputing its sha-256 and comparing against wantSHA256 (hex-encoded).
// An empty wantSHA256 skips verification. It returns the number of bytes
// written.
func (s *Store) Put(ctx context.Context, key string, data []byte, wantSHA256 string) (int64, error) {
	sum := sha256.Sum256(data)
	gotSHA256 := hex.EncodeToString(sum[:])
	if wantSHA256 != "" && gotSHA256 != wantSHA256 {
		return 0, fmt.Errorf("%w: key=%s want=%s got=%s", ErrChecksumMismatch, key, wantSHA256, gotSHA256)
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
		Metadata: map[string]string{
			"sha256": gotSHA256,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("blobstore: put %s: %w", key, err)
	}
	return int64(len(data)), nil
}

// Get retrieves the full contents of key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blobstore: get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("blobstore: read body %s: %w", key, err)
	}
	return data, nil
}

// Exists reports whether key is present in the bucket.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Head(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Head retrieves metadata for key without downloading its body.
func (s *Store) Head(ctx context.Context, key string) (ObjectMeta, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return ObjectMeta{}, ErrNotFound
		}
		return ObjectMeta{}, fmt.Errorf("blobstore: head %s: %w", key, err)
	}

	meta := ObjectMeta{Key: key}
	if out.ContentLength != nil {
		meta.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		meta.LastModified = *out.LastModified
	}
	if sum, ok := out.Metadata["sha256"]; ok {
		meta.SHA256 = sum
	}
	return meta, nil
}

// Delete removes key. Deleting a key that does not exist is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("blobstore: delete %s: %w", key, err)
	}
	return nil
}

// Copy duplicates the object at srcKey to dstKey server-side, used when
// cascading a version's blobs forward without re-downloading them.
func (s *Store) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(s.bucket + "/" + srcKey),
	})
	if err != nil {
		return fmt.Errorf("blobstore: copy %s -> %s: %w", srcKey, dstKey, err)
	}
	return nil
}

// List returns every key under prefix, paging through ListObjectsV2 as
// needed.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var token *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("blobstore: list %s: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	return keys, nil
}

// PresignedGet produces a time-limited, unauthenticated download URL for
// key, used by the manifest resolver to hand clients a grant instead of
// streaming bytes through the server.
func (s *Store) PresignedGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("blobstore: presign %s: %w", key, err)
	}
	return req.URL, nil
}

// ObjectKey builds the canonical storage key for a version file.
func ObjectKey(orgSlug, entrySlug, externalVersion, filename string) string {
	return fmt.Sprintf("%s/%s/%s/%s", orgSlug, entrySlug, externalVersion, filename)
}
