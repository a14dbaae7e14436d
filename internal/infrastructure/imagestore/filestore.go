// Package imagestore хранит загруженные изображения на диске.
package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"vision-qc/internal/domain/entity"
	"vision-qc/internal/domain/port"
)

// FileStore кладёт изображения в один каталог под uuid-именами.
type FileStore struct {
	dir string
}

// NewFileStore создаёт каталог dir при необходимости.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Save сохраняет байты изображения; расширение берётся из исходного имени.
func (s *FileStore) Save(ctx context.Context, originalName string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("empty image")
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".jpg"
	}
	ref := uuid.NewString() + ext

	if err := os.WriteFile(filepath.Join(s.dir, ref), data, 0o644); err != nil {
		return "", fmt.Errorf("write image %s: %w", ref, err)
	}
	return ref, nil
}

// Resolve читает файл и декодирует только заголовок, чтобы узнать размеры.
func (s *FileStore) Resolve(ctx context.Context, ref string) (*entity.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.safePath(ref)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", ref, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", ref, err)
	}

	return &entity.Image{Ref: ref, Width: cfg.Width, Height: cfg.Height, Data: data}, nil
}

// Path возвращает путь к файлу изображения
func (s *FileStore) Path(ref string) string {
	return filepath.Join(s.dir, filepath.Base(ref))
}

// Dir каталог хранилища
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) safePath(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || ref == "." || ref == ".." {
		return "", fmt.Errorf("invalid image ref %q", ref)
	}
	return filepath.Join(s.dir, ref), nil
}

// Проверка реализации интерфейса
var _ port.ImageStore = (*FileStore)(nil)
