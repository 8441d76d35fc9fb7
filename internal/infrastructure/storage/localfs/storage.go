package localfs

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mkovalenko/docupipe/internal/core/domain"
)

type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) Save(_ context.Context, key string, data io.Reader) error {
	path := filepath.Join(s.basePath, key)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.resolve(key))
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Describe builds an immutable descriptor for one file. The media type
// comes from the extension; unknown extensions leave it empty and the
// validation stage rejects the file.
func (s *Storage) Describe(_ context.Context, path string) (domain.DocumentDescriptor, error) {
	resolved := s.resolve(path)
	info, err := os.Stat(resolved)
	if err != nil {
		return domain.DocumentDescriptor{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return domain.DocumentDescriptor{}, fmt.Errorf("%s is a directory", path)
	}

	return domain.DocumentDescriptor{
		ID:          uuid.NewString(),
		Name:        info.Name(),
		Size:        info.Size(),
		MediaType:   mime.TypeByExtension(filepath.Ext(info.Name())),
		ModifiedAt:  info.ModTime().UTC(),
		StoragePath: resolved,
	}, nil
}

// DescribeDir lists a directory's regular files as descriptors, sorted
// by name for deterministic batch order.
func (s *Storage) DescribeDir(ctx context.Context, dir string) ([]domain.DocumentDescriptor, error) {
	resolved := s.resolve(dir)
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	docs := make([]domain.DocumentDescriptor, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		doc, err := s.Describe(ctx, filepath.Join(resolved, entry.Name()))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// resolve keeps relative keys under the base path while letting
// manifests reference absolute paths directly.
func (s *Storage) resolve(key string) string {
	if filepath.IsAbs(key) || strings.HasPrefix(key, s.basePath) {
		return key
	}
	return filepath.Join(s.basePath, key)
}
