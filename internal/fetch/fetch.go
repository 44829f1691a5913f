// Package fetch downloads the article archive and unpacks it into the source directory.
package fetch

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/newsrag/internal/storage"
	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds the archive download
	DefaultTimeout = 5 * time.Minute

	// maxFileSize caps a single extracted file
	maxFileSize = 64 << 20
)

var (
	// ErrUnsupportedURL is returned for schemes other than http, https and s3
	ErrUnsupportedURL = errors.New("archive URL must use http, https or s3")
	// ErrUnsafePath is returned for archive entries that would land outside the destination
	ErrUnsafePath = errors.New("archive entry escapes destination")
	// ErrNoObjectStore is returned for s3 URLs when no S3 client is configured
	ErrNoObjectStore = errors.New("s3 archive URL given but S3 is not configured")
)

// ObjectGetter reads objects from S3-compatible storage
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, *storage.ObjectMetadata, error)
}

// Options select the archive and where it goes
type Options struct {
	URL  string
	Dest string
	// Force downloads even when Dest already holds files
	Force bool
}

// Result reports what Fetch did
type Result struct {
	Skipped bool
	Files   int
}

// Fetcher downloads zip archives over HTTP or from S3
type Fetcher struct {
	httpClient *http.Client
	objects    ObjectGetter
}

// NewFetcher creates a Fetcher. objects may be nil when S3 is not configured.
func NewFetcher(httpClient *http.Client, objects ObjectGetter) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Fetcher{httpClient: httpClient, objects: objects}
}

// Fetch downloads the archive at opts.URL and extracts it into opts.Dest.
// Extraction goes to a staging directory that then replaces opts.Dest whole,
// so a forced fetch drops articles missing from the new archive and a failed
// one leaves opts.Dest as it was. The downloaded archive is removed afterwards.
func (f *Fetcher) Fetch(ctx context.Context, opts Options) (*Result, error) {
	if !opts.Force && populated(opts.Dest) {
		log.Printf("fetch: %s already holds files, skipping download", opts.Dest)
		return &Result{Skipped: true}, nil
	}

	dest := filepath.Clean(opts.Dest)
	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}

	archive, err := os.CreateTemp(parent, ".articles-*.zip")
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer os.Remove(archive.Name())

	n, err := f.download(ctx, opts.URL, archive)
	if closeErr := archive.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}
	log.Printf("fetch: downloaded %d bytes from %s", n, opts.URL)

	staging, err := os.MkdirTemp(parent, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	files, err := Extract(archive.Name(), staging)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(staging, 0o755); err != nil {
		return nil, fmt.Errorf("failed to set permissions on %s: %w", staging, err)
	}
	if err := replaceDir(staging, dest); err != nil {
		return nil, err
	}
	log.Printf("fetch: extracted %d files into %s", files, dest)

	return &Result{Files: files}, nil
}

// replaceDir moves src to dest, moving any existing dest aside first and
// restoring it when the final rename fails.
func replaceDir(src, dest string) error {
	var backup string
	if _, err := os.Lstat(dest); err == nil {
		backup = filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".old-"+uuid.NewString())
		if err := os.Rename(dest, backup); err != nil {
			return fmt.Errorf("failed to move previous articles aside: %w", err)
		}
	}

	if err := os.Rename(src, dest); err != nil {
		if backup != "" {
			if restoreErr := os.Rename(backup, dest); restoreErr != nil {
				return fmt.Errorf("failed to replace %s: %w (restore failed: %v)", dest, err, restoreErr)
			}
		}
		return fmt.Errorf("failed to replace %s: %w", dest, err)
	}

	if backup != "" {
		_ = os.RemoveAll(backup)
	}
	return nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	switch {
	case strings.HasPrefix(rawURL, "s3://"):
		if f.objects == nil {
			return 0, ErrNoObjectStore
		}
		bucket, key, err := storage.ParseObjectURL(rawURL)
		if err != nil {
			return 0, err
		}
		body, _, err := f.objects.GetObject(ctx, bucket, key)
		if err != nil {
			return 0, err
		}
		defer body.Close()
		return copyBody(w, body)

	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := f.httpClient.Do(req)
		if err != nil {
			return 0, fmt.Errorf("failed to download archive: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return 0, fmt.Errorf("failed to download archive: status %d", resp.StatusCode)
		}
		return copyBody(w, resp.Body)

	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}
}

func copyBody(w io.Writer, r io.Reader) (int64, error) {
	n, err := io.Copy(w, r)
	if err != nil {
		return n, fmt.Errorf("failed to write archive: %w", err)
	}
	return n, nil
}

// Extract unpacks the zip at archivePath into dest and returns the number of
// files written. A single top-level directory shared by every entry is
// stripped, so articles.zip holding articles/... lands directly in dest.
func Extract(archivePath, dest string) (int, error) {
	r, err := zip.OpenReader(archivePath)
	if errors.Is(err, zip.ErrInsecurePath) {
		r.Close()
		return 0, fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	prefix := commonRoot(r.File)
	root := filepath.Clean(dest)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create destination: %w", err)
	}

	files := 0
	for _, zf := range r.File {
		name := strings.TrimPrefix(zf.Name, prefix)
		if name == "" || strings.HasPrefix(name, "__MACOSX/") {
			continue
		}

		target, err := safeJoin(root, name)
		if err != nil {
			return files, err
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		if err := extractFile(zf, target); err != nil {
			return files, err
		}
		files++
	}

	return files, nil
}

func extractFile(zf *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	src, err := zf.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", zf.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	n, err := io.Copy(dst, io.LimitReader(src, maxFileSize+1))
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", zf.Name, err)
	}
	if n > maxFileSize {
		return fmt.Errorf("failed to extract %s: file exceeds %d bytes", zf.Name, maxFileSize)
	}
	return nil
}

func safeJoin(root, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

// commonRoot returns "dir/" when every entry sits under the same top-level directory.
func commonRoot(files []*zip.File) string {
	var root string
	for _, zf := range files {
		first, rest, found := strings.Cut(zf.Name, "/")
		if !found || first == "" || first == ".." {
			return ""
		}
		if strings.HasPrefix(first, "__MACOSX") {
			continue
		}
		if rest == "" && !zf.FileInfo().IsDir() {
			return ""
		}
		if root == "" {
			root = first
		} else if root != first {
			return ""
		}
	}
	if root == "" {
		return ""
	}
	return root + "/"
}

// populated reports whether dir exists and holds at least one visible entry.
func populated(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), ".") {
			return true
		}
	}
	return false
}
