// Package storage is a bucketed object store on local disk with public URLs.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Buckets used by the site
const (
	BucketStaffPhotos       = "staff-photos"
	BucketEventImages       = "event-images"
	BucketGalleryMedia      = "gallery-media"
	BucketAchievementImages = "achievement-images"
	BucketAvatars           = "avatars"
)

// DefaultCacheControl matches the cache lifetime used for uploaded media
const DefaultCacheControl = "max-age=3600"

var (
	ErrInvalidPath   = errors.New("invalid object path")
	ErrUnknownBucket = errors.New("unknown bucket")
	ErrObjectExists  = errors.New("object already exists")
	ErrNotFound      = errors.New("object not found")
)

// Options control an upload
type Options struct {
	CacheControl string
	ContentType  string
	Upsert       bool
}

// Object describes a stored object
type Object struct {
	Bucket       string `json:"bucket"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type"`
	CacheControl string `json:"cache_control"`
	PublicURL    string `json:"public_url"`
}

// Store keeps one directory per bucket under root
type Store struct {
	root    string
	baseURL string
	buckets map[string]struct{}
	logger  zerolog.Logger
}

// New creates the store and its bucket directories
func New(root, publicBaseURL string, logger zerolog.Logger, buckets ...string) (*Store, error) {
	if len(buckets) == 0 {
		buckets = []string{
			BucketStaffPhotos, BucketEventImages, BucketGalleryMedia,
			BucketAchievementImages, BucketAvatars,
		}
	}

	s := &Store{
		root:    root,
		baseURL: strings.TrimSuffix(publicBaseURL, "/"),
		buckets: make(map[string]struct{}, len(buckets)),
		logger:  logger.With().Str("component", "storage").Logger(),
	}
	for _, b := range buckets {
		if err := os.MkdirAll(filepath.Join(root, b), 0755); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", b, err)
		}
		s.buckets[b] = struct{}{}
	}
	return s, nil
}

// ObjectName builds a unique object path "<owner>/<owner>-<ulid>.<ext>" for an upload
func ObjectName(ownerID, filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	name := fmt.Sprintf("%s-%s", ownerID, ulid.Make().String())
	if ext != "" {
		name += "." + ext
	}
	return path.Join(ownerID, name)
}

func (s *Store) resolve(bucket, objectPath string) (string, error) {
	if _, ok := s.buckets[bucket]; !ok {
		return "", ErrUnknownBucket
	}
	clean := path.Clean("/" + objectPath)
	if clean == "/" || strings.Contains(objectPath, "..") || strings.HasSuffix(clean, metaSuffix) {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, bucket, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

const metaSuffix = ".meta.json"

// Upload writes an object
func (s *Store) Upload(bucket, objectPath string, r io.Reader, opts Options) (*Object, error) {
	full, err := s.resolve(bucket, objectPath)
	if err != nil {
		return nil, err
	}

	if !opts.Upsert {
		if _, err := os.Stat(full); err == nil {
			return nil, ErrObjectExists
		}
	}
	if opts.CacheControl == "" {
		opts.CacheControl = DefaultCacheControl
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, fmt.Errorf("failed to create object directory: %w", err)
	}

	// Write to a temp file first so readers never see a partial object
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	size, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write object: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to store object: %w", err)
	}

	obj := &Object{
		Bucket:       bucket,
		Path:         strings.TrimPrefix(path.Clean("/"+objectPath), "/"),
		Size:         size,
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
	}
	obj.PublicURL = s.PublicURL(bucket, obj.Path)

	meta, err := json.Marshal(obj)
	if err == nil {
		err = os.WriteFile(full+metaSuffix, meta, 0644)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("bucket", bucket).Str("path", obj.Path).Msg("Failed to write object metadata")
	}

	s.logger.Debug().Str("bucket", bucket).Str("path", obj.Path).Int64("size", size).Msg("Object stored")
	return obj, nil
}

// Open returns a reader for an object together with its metadata
func (s *Store) Open(bucket, objectPath string) (*os.File, *Object, error) {
	full, err := s.resolve(bucket, objectPath)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	obj := &Object{Bucket: bucket, Path: objectPath, CacheControl: DefaultCacheControl}
	if meta, err := os.ReadFile(full + metaSuffix); err == nil {
		_ = json.Unmarshal(meta, obj)
	}
	return f, obj, nil
}

// Remove deletes objects. Missing objects are ignored.
func (s *Store) Remove(bucket string, objectPaths ...string) error {
	var errs []error
	for _, p := range objectPaths {
		full, err := s.resolve(bucket, p)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		for _, f := range []string{full, full + metaSuffix} {
			if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// PublicURL returns the public URL of an object
func (s *Store) PublicURL(bucket, objectPath string) string {
	escaped := make([]string, 0)
	for _, seg := range strings.Split(strings.TrimPrefix(objectPath, "/"), "/") {
		escaped = append(escaped, url.PathEscape(seg))
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, bucket, strings.Join(escaped, "/"))
}

// PathFromPublicURL extracts the object path from a public URL of bucket.
// ok is false when the URL does not point into the bucket.
func (s *Store) PathFromPublicURL(bucket, publicURL string) (string, bool) {
	marker := "/storage/v1/object/public/" + bucket + "/"
	i := strings.Index(publicURL, marker)
	if i < 0 {
		return "", false
	}
	p, err := url.PathUnescape(publicURL[i+len(marker):])
	if err != nil || p == "" {
		return "", false
	}
	return p, true
}
