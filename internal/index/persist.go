package index

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cloo-solutions/newsrag/internal/domain"
	"github.com/google/uuid"
)

const (
	// FormatVersion is the on-disk layout version written to the manifest.
	FormatVersion = 1

	ManifestFile = "manifest.json"
	EntriesFile  = "entries.json"
)

// Persist writes the store to dir. The write is atomic: a complete index is
// staged in a sibling temporary directory and renamed into place, so on failure
// any index previously at dir is left as it was.
func Persist(store *Store, dir string) error {
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return fmt.Errorf("persist path %s exists and is not a directory", dir)
	}

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := writeArtifacts(store, tmp); err != nil {
		return err
	}

	var backup string
	if _, err := os.Stat(dir); err == nil {
		backup = filepath.Join(parent, "."+filepath.Base(dir)+".old-"+uuid.NewString())
		if err := os.Rename(dir, backup); err != nil {
			return fmt.Errorf("failed to move previous index aside: %w", err)
		}
	}

	if err := os.Rename(tmp, dir); err != nil {
		if backup != "" {
			if restoreErr := os.Rename(backup, dir); restoreErr != nil {
				return fmt.Errorf("failed to commit index: %w (restore failed: %v)", err, restoreErr)
			}
		}
		return fmt.Errorf("failed to commit index: %w", err)
	}

	if backup != "" {
		_ = os.RemoveAll(backup)
	}
	syncDir(parent)
	return nil
}

func writeArtifacts(store *Store, dir string) error {
	entries := store.Entries()
	if entries == nil {
		entries = []domain.IndexEntry{}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(entries); err != nil {
		return fmt.Errorf("failed to encode entries: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())

	manifest := domain.IndexManifest{
		Version:    FormatVersion,
		Dimensions: store.Dimensions(),
		Provider:   store.Provider(),
		EntryCount: len(entries),
		Checksum:   hex.EncodeToString(sum[:]),
		CreatedAt:  time.Now().UTC(),
	}
	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := writeFileSync(filepath.Join(dir, EntriesFile), buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write entries: %w", err)
	}
	// The manifest is written last so a staging dir without one is never mistaken for an index.
	if err := writeFileSync(filepath.Join(dir, ManifestFile), manifestBytes); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
}

// Exists reports whether dir holds a complete artifact set. Missing or empty
// artifacts count as no index at all rather than a corrupt one.
func Exists(dir string) bool {
	return nonEmptyFile(filepath.Join(dir, ManifestFile)) && nonEmptyFile(filepath.Join(dir, EntriesFile))
}

func nonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Load reads a persisted index from dir.
func Load(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, domain.ErrIndexNotFound.WithCause(fmt.Errorf("%s is not an index directory", dir))
	}

	manifestBytes, err := readArtifact(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	entriesBytes, err := readArtifact(filepath.Join(dir, EntriesFile))
	if err != nil {
		return nil, err
	}

	var manifest domain.IndexManifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, domain.ErrCorruptIndex.WithCause(fmt.Errorf("failed to decode manifest: %w", err))
	}

	var entries []domain.IndexEntry
	if err := json.Unmarshal(entriesBytes, &entries); err != nil {
		return nil, domain.ErrCorruptIndex.WithCause(fmt.Errorf("failed to decode entries: %w", err))
	}

	sum := sha256.Sum256(entriesBytes)
	return fromManifest(manifest, entries, hex.EncodeToString(sum[:]))
}

func readArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrIndexNotFound.WithCause(fmt.Errorf("missing %s", filepath.Base(path)))
		}
		return nil, domain.ErrCorruptIndex.WithCause(err)
	}
	return data, nil
}

// fromManifest validates entries against their manifest and builds a store.
// checksum is compared only when non-empty.
func fromManifest(manifest domain.IndexManifest, entries []domain.IndexEntry, checksum string) (*Store, error) {
	if manifest.Version != FormatVersion {
		return nil, domain.ErrCorruptIndex.WithCause(fmt.Errorf("unsupported format version %d", manifest.Version))
	}
	if checksum != "" && manifest.Checksum != checksum {
		return nil, domain.ErrCorruptIndex.WithCause(errors.New("entries checksum mismatch"))
	}
	if manifest.EntryCount != len(entries) {
		return nil, domain.ErrCorruptIndex.WithCause(
			fmt.Errorf("manifest declares %d entries, found %d", manifest.EntryCount, len(entries)))
	}
	if len(entries) > 0 && manifest.Dimensions <= 0 {
		return nil, domain.ErrCorruptIndex.WithCause(errors.New("manifest has no dimensionality"))
	}

	store := NewStore(manifest.Dimensions, manifest.Provider)
	if err := store.restore(entries); err != nil {
		return nil, err
	}
	return store, nil
}

// FromEntries rebuilds a store from entries read out of another backend.
func FromEntries(manifest domain.IndexManifest, entries []domain.IndexEntry) (*Store, error) {
	return fromManifest(manifest, entries, "")
}
