package imagemeta

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultExtensions are the image types the library manages.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".webp"}

// Scanner lists supported image files.
type Scanner struct {
	extensions map[string]struct{}
}

// NewScanner creates a scanner for the given extensions (DefaultExtensions when empty).
func NewScanner(extensions []string) *Scanner {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	s := &Scanner{extensions: make(map[string]struct{}, len(extensions))}
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.extensions[ext] = struct{}{}
	}
	return s
}

// IsSupported reports whether the path has a supported image extension.
func (s *Scanner) IsSupported(path string) bool {
	_, ok := s.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ListFiles returns supported images directly inside dir, sorted by name.
// A missing directory yields an empty list.
func (s *Scanner) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !s.IsSupported(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ScanDirectory returns supported images anywhere below dir, sorted by path.
func (s *Scanner) ScanDirectory(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			// Unreadable subtree, keep walking the rest.
			return nil
		}
		if !d.IsDir() && s.IsSupported(path) {
			files = append(files, path)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan directory %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// FoldName lowercases a folder name and strips diacritics so "Mieszane",
// "MIESZANE" and "Mieszané" compare equal.
func FoldName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// FolderSet matches folder names case- and diacritic-insensitively.
type FolderSet map[string]struct{}

// NewFolderSet builds a set from folder names.
func NewFolderSet(names []string) FolderSet {
	set := make(FolderSet, len(names))
	for _, n := range names {
		if f := FoldName(n); f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}

// Contains reports whether name is in the set.
func (fs FolderSet) Contains(name string) bool {
	_, ok := fs[FoldName(name)]
	return ok
}
