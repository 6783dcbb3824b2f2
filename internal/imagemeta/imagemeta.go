// Package imagemeta reads the file metadata the sorter ranks images by:
// size, modification time and pixel dimensions from the image header.
package imagemeta

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Entry describes one image file on disk.
type Entry struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
}

// Area returns the pixel area, 0 when dimensions are unknown.
func (e *Entry) Area() int64 {
	return int64(e.Width) * int64(e.Height)
}

// Stat reads size and modification time without opening the image.
func Stat(path string) (*Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &Entry{
		Path:    path,
		Name:    filepath.Base(path),
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
	}, nil
}

// Extract reads file metadata and the pixel dimensions from the image header.
// An undecodable header leaves Width and Height at 0 rather than failing.
func Extract(path string) (*Entry, error) {
	entry, err := Stat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if cfg, _, err := image.DecodeConfig(f); err == nil {
		entry.Width = cfg.Width
		entry.Height = cfg.Height
	}
	return entry, nil
}

// Better reports whether a should be kept over b: larger pixel area wins,
// then larger file size, then the more recent modification time.
// Fully equal files are not better, so the existing file is kept.
func Better(a, b *Entry) bool {
	if a == nil || b == nil {
		return false
	}
	if areaA, areaB := a.Area(), b.Area(); areaA != areaB {
		return areaA > areaB
	}
	if a.Size != b.Size {
		return a.Size > b.Size
	}
	return a.ModTime.After(b.ModTime)
}

// SamePath reports whether two paths name the same file location.
func SamePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// Within reports whether path lies inside the directory root.
func Within(root, path string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
