// Package loader reads a directory of article files into documents.
package loader

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cloo-solutions/newsrag/internal/domain"
)

// DefaultExtensions lists the file types read when no extensions are configured.
var DefaultExtensions = []string{".txt", ".md", ".markdown", ".text", ".csv"}

// Loader reads text-like files from a source directory.
type Loader struct {
	extensions map[string]struct{}
}

// New creates a Loader for the given extensions, or DefaultExtensions when none are given.
func New(extensions ...string) *Loader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return &Loader{extensions: set}
}

// Load returns one document per readable supported file under dir, ordered
// lexicographically by relative path. Hidden files and directories are skipped.
func (l *Loader) Load(dir string) ([]domain.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrDirectoryNotFound.WithCause(fmt.Errorf("%s does not exist", dir))
		}
		return nil, domain.ErrDirectoryNotFound.WithCause(err)
	}
	if !info.IsDir() {
		return nil, domain.ErrDirectoryNotFound.WithCause(fmt.Errorf("%s is not a directory", dir))
	}

	var docs []domain.Document
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			log.Printf("loader: skipping %s: %v", path, walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !l.supports(path) {
			return nil
		}

		doc, err := readDocument(dir, path)
		if err != nil {
			log.Printf("loader: skipping unreadable file %s: %v", path, err)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk source directory: %w", err)
	}

	if len(docs) == 0 {
		return nil, domain.ErrNoDocumentsFound.WithCause(fmt.Errorf("no supported files in %s", dir))
	}

	// WalkDir orders each directory on its own, so a/ comes before a.txt.
	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })

	return docs, nil
}

func (l *Loader) supports(path string) bool {
	_, ok := l.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func readDocument(root, path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.Document{}, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	return domain.Document{
		Source: rel,
		Text:   string(data),
		Metadata: map[string]string{
			domain.MetaFileName:         filepath.Base(path),
			domain.MetaFilePath:         rel,
			domain.MetaFileSize:         strconv.FormatInt(info.Size(), 10),
			domain.MetaLastModifiedDate: info.ModTime().UTC().Format("2006-01-02"),
		},
	}, nil
}
