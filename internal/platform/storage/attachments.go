package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmptyFile           = errors.New("attachment is empty")
	ErrExtensionNotAllowed = errors.New("attachment type is not allowed")
	ErrTooLarge            = errors.New("attachment exceeds maximum size")
	ErrInvalidRef          = errors.New("invalid attachment reference")
)

// Attachments keeps uploaded files on local disk. A reference is
// "<uuid>/<sanitized name>" relative to the root directory.
type Attachments struct {
	root string
	log  *zap.Logger
}

func NewAttachments(root string, log *zap.Logger) (*Attachments, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("attachment directory is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create attachment directory: %w", err)
	}
	return &Attachments{root: root, log: log.Named("storage")}, nil
}

// Validate checks size and extension without touching the disk.
func Validate(name string, size int64, allowedExt []string, maxSize int64) error {
	if size <= 0 {
		return ErrEmptyFile
	}
	if maxSize > 0 && size > maxSize {
		return ErrTooLarge
	}
	ext := Extension(name)
	if ext == "" {
		return ErrExtensionNotAllowed
	}
	for _, allowed := range allowedExt {
		if strings.EqualFold(strings.TrimPrefix(strings.TrimSpace(allowed), "."), ext) {
			return nil
		}
	}
	return ErrExtensionNotAllowed
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func (a *Attachments) Store(ctx context.Context, name string, data []byte, allowedExt []string, maxSize int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name = SanitizeFileName(name)
	if err := Validate(name, int64(len(data)), allowedExt, maxSize); err != nil {
		return "", err
	}

	ref := uuid.NewString() + "/" + name
	path := filepath.Join(a.root, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create attachment folder: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}
	a.log.Debug("attachment stored", zap.String("ref", ref), zap.Int("bytes", len(data)))
	return ref, nil
}

func (a *Attachments) Open(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := a.resolve(ref)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Remove deletes a stored file and its folder. Missing files are not an error.
func (a *Attachments) Remove(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := a.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Dir(path)); err != nil {
		return fmt.Errorf("remove attachment: %w", err)
	}
	return nil
}

func (a *Attachments) resolve(ref string) (string, error) {
	parts := strings.Split(ref, "/")
	if len(parts) != 2 {
		return "", ErrInvalidRef
	}
	if _, err := uuid.Parse(parts[0]); err != nil {
		return "", ErrInvalidRef
	}
	if parts[1] == "" || parts[1] != SanitizeFileName(parts[1]) {
		return "", ErrInvalidRef
	}
	return filepath.Join(a.root, parts[0], parts[1]), nil
}

func SanitizeFileName(name string) string {
	cleaned := strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	cleaned = strings.ReplaceAll(cleaned, "\x00", "")
	if cleaned == "" || cleaned == "." || cleaned == "/" || cleaned == ".." {
		return "document.bin"
	}
	return cleaned
}
