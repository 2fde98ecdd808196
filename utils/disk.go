package utils

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxImageSize bounds uploaded covers and photos.
const MaxImageSize = 5 << 20

var (
	ErrUnsupportedImage = errors.New("only jpg, jpeg, png, webp or gif images are accepted")
	ErrImageTooLarge    = errors.New("image exceeds 5MB")
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// Disk stores uploaded images below Root and serves them under PublicPrefix.
type Disk struct {
	Root         string
	PublicPrefix string
}

// NewDisk creates the root directory if needed.
func NewDisk(root, publicPrefix string) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Disk{Root: root, PublicPrefix: strings.TrimRight(publicPrefix, "/")}, nil
}

// Put stores the upload as {dir}/{uuid}{ext} and returns that relative path.
func (d *Disk) Put(dir string, fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !imageExts[ext] {
		return "", ErrUnsupportedImage
	}
	if fh.Size > MaxImageSize {
		return "", ErrImageTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Join(d.Root, dir), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	rel := path.Join(dir, uuid.NewString()+ext)
	dst := filepath.Join(d.Root, filepath.FromSlash(rel))

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	written, err := io.Copy(out, &io.LimitedReader{R: src, N: MaxImageSize + 1})
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("write file: %w", err)
	}
	if written > MaxImageSize {
		_ = os.Remove(dst)
		return "", ErrImageTooLarge
	}
	return rel, nil
}

// Delete removes a stored file; a missing file is not an error.
func (d *Disk) Delete(rel string) error {
	if rel == "" {
		return nil
	}
	p, err := d.abs(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether rel refers to a stored file.
func (d *Disk) Exists(rel string) bool {
	p, err := d.abs(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// URL returns the public URL of rel, or fallback when rel is empty.
func (d *Disk) URL(rel, fallback string) string {
	if rel == "" {
		return fallback
	}
	return d.PublicPrefix + "/" + strings.TrimLeft(rel, "/")
}

// Sweep removes files in dirs that are not in keep and were modified before cutoff.
// It returns the relative paths removed.
func (d *Disk) Sweep(dirs []string, keep map[string]struct{}, cutoff time.Time) ([]string, error) {
	var removed []string
	for _, dir := range dirs {
		base := filepath.Join(d.Root, dir)
		err := filepath.WalkDir(base, func(p string, entry fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if entry.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(d.Root, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if _, ok := keep[rel]; ok {
				return nil
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				return nil
			}
			if err := os.Remove(p); err == nil {
				removed = append(removed, rel)
			}
			return nil
		})
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (d *Disk) abs(rel string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(rel))
	if clean == "/" {
		return "", errors.New("empty storage path")
	}
	return filepath.Join(d.Root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}
