package reconcile

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kozaktomas/library-sorter/internal/constants"
	"github.com/kozaktomas/library-sorter/internal/fileops"
)

const (
	suffixNew      = "_new_approved"
	suffixConflict = "_conflict_approved"
)

// UniquePath returns the first free "<base><suffix><N><ext>" next to target,
// N from 1 to constants.UniqueNameMaxAttempts, then falls back to a UUID.
func UniquePath(target, suffix string) string {
	dir := filepath.Dir(target)
	ext := filepath.Ext(target)
	base := strings.TrimSuffix(filepath.Base(target), ext)

	for n := 1; n <= constants.UniqueNameMaxAttempts; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s%s%d%s", base, suffix, n, ext))
		if !fileops.Exists(candidate) {
			return candidate
		}
	}
	return filepath.Join(dir, fmt.Sprintf("%s%s_%s%s", base, suffix, uuid.New().String(), ext))
}
