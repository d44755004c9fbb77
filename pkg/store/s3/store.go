// Package s3 provides a store backed by an S3 bucket.
//
// Documents are objects keyed by their path under KeyPrefix. Collections
// are zero-length marker objects whose key ends with "/"; a prefix that
// only has members (objects written by other tools) also counts as a
// collection.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/store"
)

// Config holds configuration for the S3 store.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// KeyPrefix is prepended to all keys. A trailing "/" is added if missing.
	KeyPrefix string

	// AccessKeyID and SecretAccessKey, when set, replace the default
	// credential chain.
	AccessKeyID     string
	SecretAccessKey string

	// MaxRetries is the maximum number of retry attempts for transient errors.
	MaxRetries int

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool
}

// Metrics records S3 API activity. A nil Metrics disables recording.
type Metrics interface {
	// ObserveOperation records one S3 API call. Not-found answers count as
	// successful calls.
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records bytes uploaded by an operation.
	RecordBytes(operation string, bytes int64)
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics records S3 API metrics to m.
func WithMetrics(m Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// Store is an S3-backed implementation of store.Store.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	endpoint  string
	metrics   Metrics
	closed    bool
	mu        sync.RWMutex
}

var (
	_ store.Store         = (*Store)(nil)
	_ store.NativeCopier  = (*Store)(nil)
	_ store.NativeMover   = (*Store)(nil)
	_ store.HealthChecker = (*Store)(nil)
)

// New creates an S3 store with an existing client.
func New(client *s3.Client, config Config, opts ...Option) *Store {
	prefix := config.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	s := &Store{
		client:    client,
		bucket:    config.Bucket,
		keyPrefix: strings.TrimPrefix(prefix, "/"),
		endpoint:  config.Endpoint,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig creates an S3 store by building a client from config.
func NewFromConfig(ctx context.Context, config Config, opts ...Option) (*Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error

	if config.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(config.Region))
	}
	if config.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}
	if config.MaxRetries > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(config.MaxRetries))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if config.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}
	if config.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return New(s3.NewFromConfig(awsCfg, s3Opts...), config, opts...), nil
}

func (s *Store) ID() string {
	return fmt.Sprintf("s3:%s/%s/%s", s.endpoint, s.bucket, s.keyPrefix)
}

func (s *Store) Type() string { return "s3" }

// docKey returns the object key of a document.
func (s *Store) docKey(p string) string {
	return s.keyPrefix + strings.TrimPrefix(store.Clean(p), "/")
}

// dirKey returns the marker key of a collection; the root maps to the prefix.
func (s *Store) dirKey(p string) string {
	p = store.Clean(p)
	if p == "/" {
		return s.keyPrefix
	}
	return s.docKey(p) + "/"
}

func (s *Store) observe(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	if isNotFoundError(err) {
		err = nil
	}
	s.metrics.ObserveOperation(operation, time.Since(start), err)
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return daverrors.NewStoreClosedError()
	}
	return nil
}

// Stat returns the node at p.
func (s *Store) Stat(ctx context.Context, p string) (store.Info, error) {
	if err := s.checkOpen(); err != nil {
		return store.Info{}, err
	}
	p = store.Clean(p)
	if p == "/" {
		return store.Info{Path: "/", IsCollection: true}, nil
	}

	start := time.Now()
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.docKey(p)),
	})
	s.observe("HeadObject", start, err)
	if err == nil {
		info := store.Info{Path: p, Size: aws.ToInt64(head.ContentLength)}
		if head.LastModified != nil {
			info.ModTime = *head.LastModified
		}
		return info, nil
	}
	if !isNotFoundError(err) {
		return store.Info{}, daverrors.Wrap(daverrors.ErrIOError, p, fmt.Errorf("s3 head object: %w", err))
	}

	isDir, err := s.prefixExists(ctx, s.dirKey(p))
	if err != nil {
		return store.Info{}, daverrors.Wrap(daverrors.ErrIOError, p, err)
	}
	if !isDir {
		return store.Info{}, daverrors.NewNotFoundError(p)
	}
	return store.Info{Path: p, IsCollection: true}, nil
}

func (s *Store) prefixExists(ctx context.Context, prefix string) (bool, error) {
	start := time.Now()
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	s.observe("ListObjectsV2", start, err)
	if err != nil {
		return false, fmt.Errorf("s3 list objects: %w", err)
	}
	return len(out.Contents) > 0, nil
}

// List returns the direct members of the collection at p.
func (s *Store) List(ctx context.Context, p string) ([]store.Info, error) {
	info, err := s.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	if !info.IsCollection {
		return nil, daverrors.NewNotCollectionError(p)
	}

	prefix := s.dirKey(p)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var infos []store.Info
	for paginator.HasMorePages() {
		start := time.Now()
		page, err := paginator.NextPage(ctx)
		s.observe("ListObjectsV2", start, err)
		if err != nil {
			return nil, daverrors.Wrap(daverrors.ErrIOError, p, fmt.Errorf("s3 list objects: %w", err))
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name == "" {
				continue
			}
			infos = append(infos, store.Info{Path: store.Join(info.Path, name), IsCollection: true})
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				continue // the collection marker itself
			}
			doc := store.Info{Path: store.Join(info.Path, name), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				doc.ModTime = *obj.LastModified
			}
			infos = append(infos, doc)
		}
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// checkParent verifies the parent of p is a collection.
func (s *Store) checkParent(ctx context.Context, p string) error {
	parent, err := s.Stat(ctx, store.Dir(p))
	if daverrors.IsNotFoundError(err) || (err == nil && !parent.IsCollection) {
		return daverrors.NewConflictError(p, "parent collection does not exist")
	}
	return err
}

// Mkdir creates a collection marker.
func (s *Store) Mkdir(ctx context.Context, p string) error {
	if _, err := s.Stat(ctx, p); err == nil {
		return daverrors.NewAlreadyExistsError(p)
	} else if !daverrors.IsNotFoundError(err) {
		return err
	}
	if err := s.checkParent(ctx, p); err != nil {
		return err
	}

	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.dirKey(p)),
		Body:          strings.NewReader(""),
		ContentLength: aws.Int64(0),
	})
	s.observe("PutObject", start, err)
	if err != nil {
		return daverrors.Wrap(daverrors.ErrIOError, p, fmt.Errorf("s3 put object: %w", err))
	}
	return nil
}

// OpenRead streams a document.
func (s *Store) OpenRead(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.docKey(p)),
	})
	s.observe("GetObject", start, err)
	if err != nil {
		if isNotFoundError(err) {
			if info, statErr := s.Stat(ctx, p); statErr == nil && info.IsCollection {
				return nil, daverrors.NewIsCollectionError(p)
			}
			return nil, daverrors.NewNotFoundError(p)
		}
		return nil, daverrors.Wrap(daverrors.ErrIOError, p, fmt.Errorf("s3 get object: %w", err))
	}
	return resp.Body, nil
}

// OpenWrite spools content to a temporary file and uploads it on Close.
// PutObject needs a known length, which a streamed request body lacks.
func (s *Store) OpenWrite(ctx context.Context, p string) (store.DocumentWriter, error) {
	info, err := s.Stat(ctx, p)
	if err == nil && info.IsCollection {
		return nil, daverrors.NewIsCollectionError(p)
	}
	if err != nil && !daverrors.IsNotFoundError(err) {
		return nil, err
	}
	if err := s.checkParent(ctx, p); err != nil {
		return nil, err
	}

	spool, err := os.CreateTemp("", "dittodav-s3-*")
	if err != nil {
		return nil, daverrors.Wrap(daverrors.ErrIOError, p, err)
	}
	return &objectWriter{ctx: ctx, store: s, path: p, spool: spool}, nil
}

type objectWriter struct {
	ctx   context.Context
	store *Store
	path  string
	spool *os.File
	size  int64
	done  bool
}

func (w *objectWriter) Write(p []byte) (int, error) {
	n, err := w.spool.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *objectWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	defer w.discard()

	if _, err := w.spool.Seek(0, io.SeekStart); err != nil {
		return daverrors.Wrap(daverrors.ErrIOError, w.path, err)
	}
	start := time.Now()
	_, err := w.store.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(w.store.bucket),
		Key:           aws.String(w.store.docKey(w.path)),
		Body:          w.spool,
		ContentLength: aws.Int64(w.size),
	})
	w.store.observe("PutObject", start, err)
	if err != nil {
		return daverrors.Wrap(daverrors.ErrIOError, w.path, fmt.Errorf("s3 put object: %w", err))
	}
	if w.store.metrics != nil {
		w.store.metrics.RecordBytes("PutObject", w.size)
	}
	return nil
}

func (w *objectWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.discard()
	return nil
}

func (w *objectWriter) discard() {
	_ = w.spool.Close()
	_ = os.Remove(w.spool.Name())
}

// Remove deletes a document or an empty collection marker.
func (s *Store) Remove(ctx context.Context, p string) error {
	if store.Clean(p) == "/" {
		return daverrors.NewForbiddenError(p, "cannot remove the root collection")
	}
	info, err := s.Stat(ctx, p)
	if err != nil {
		return err
	}

	key := s.docKey(p)
	if info.IsCollection {
		key = s.dirKey(p)
		start := time.Now()
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(s.bucket),
			Prefix:  aws.String(key),
			MaxKeys: aws.Int32(2),
		})
		s.observe("ListObjectsV2", start, err)
		if err != nil {
			return daverrors.Wrap(daverrors.ErrIOError, p, fmt.Errorf("s3 list objects: %w", err))
		}
		for _, obj := range out.Contents {
			if aws.ToString(obj.Key) != key {
				return daverrors.NewNotEmptyError(p)
			}
		}
	}

	start := time.Now()
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	s.observe("DeleteObject", start, err)
	if err != nil {
		return daverrors.Wrap(daverrors.ErrIOError, p, fmt.Errorf("s3 delete object: %w", err))
	}
	return nil
}

// CopyDocument copies an object server side.
func (s *Store) CopyDocument(ctx context.Context, src, dst string) error {
	info, err := s.Stat(ctx, src)
	if err != nil {
		return err
	}
	if info.IsCollection {
		return daverrors.NewIsCollectionError(src)
	}
	if err := s.checkParent(ctx, dst); err != nil {
		return err
	}
	return s.copyObject(ctx, s.docKey(src), s.docKey(dst))
}

func (s *Store) copyObject(ctx context.Context, srcKey, dstKey string) error {
	start := time.Now()
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(url.PathEscape(s.bucket + "/" + srcKey)),
	})
	s.observe("CopyObject", start, err)
	if err != nil {
		return daverrors.Wrap(daverrors.ErrIOError, dstKey, fmt.Errorf("s3 copy object: %w", err))
	}
	return nil
}

// MoveNode copies every object under src to dst, then batch-deletes the
// originals. S3 has no rename, so the move is not atomic.
func (s *Store) MoveNode(ctx context.Context, src, dst string) error {
	if store.Clean(src) == "/" || store.IsWithin(dst, src) {
		return daverrors.NewForbiddenError(dst, "cannot move a collection into itself")
	}
	info, err := s.Stat(ctx, src)
	if err != nil {
		return err
	}
	if existing, err := s.Stat(ctx, dst); err == nil && (existing.IsCollection || info.IsCollection) {
		return daverrors.NewAlreadyExistsError(dst)
	}
	if err := s.checkParent(ctx, dst); err != nil {
		return err
	}

	// CopyObject replaces an existing destination object in one request.
	if !info.IsCollection {
		if err := s.copyObject(ctx, s.docKey(src), s.docKey(dst)); err != nil {
			return err
		}
		return s.deleteKeys(ctx, []string{s.docKey(src)})
	}

	srcPrefix, dstPrefix := s.dirKey(src), s.dirKey(dst)
	var moved []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(srcPrefix),
	})
	for paginator.HasMorePages() {
		listStart := time.Now()
		page, err := paginator.NextPage(ctx)
		s.observe("ListObjectsV2", listStart, err)
		if err != nil {
			return daverrors.Wrap(daverrors.ErrIOError, src, fmt.Errorf("s3 list objects: %w", err))
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if err := s.copyObject(ctx, key, dstPrefix+strings.TrimPrefix(key, srcPrefix)); err != nil {
				return err
			}
			moved = append(moved, key)
		}
	}
	return s.deleteKeys(ctx, moved)
}

// deleteKeys removes keys in batches of up to 1000.
func (s *Store) deleteKeys(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += 1000 {
		end := min(start+1000, len(keys))
		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
		}
		started := time.Now()
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		s.observe("DeleteObjects", started, err)
		if err != nil {
			return daverrors.Wrap(daverrors.ErrIOError, keys[start], fmt.Errorf("s3 delete objects: %w", err))
		}
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// HealthCheck verifies the S3 bucket is accessible.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}
	return nil
}

// isNotFoundError checks if an error is an S3 not found error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	// HeadObject errors carry no typed body on some S3-compatible servers.
	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "404")
}
