package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kozaktomas/library-sorter/internal/database"
	"github.com/kozaktomas/library-sorter/internal/fslock"
)

// JSONBackendName is the name the JSON directory backend is registered under.
const JSONBackendName = "json"

const (
	dirLockName    = ".profiles.lock"
	dirLockTimeout = 10 * time.Second
)

// namespaceFile is the on-disk layout of one namespace
type namespaceFile struct {
	Namespace string        `json:"namespace"`
	Profiles  []profileJSON `json:"profiles"`
}

type profileJSON struct {
	Name         string    `json:"name"`
	Centroid     []float32 `json:"centroid,omitempty"`
	Members      []string  `json:"members"`
	LastComputed time.Time `json:"last_computed"`
}

// JSONDir keeps one <namespace>.json file per namespace in a directory.
// Writes go to a temp file that is renamed into place, under a lock file
// shared with other processes.
type JSONDir struct {
	dir string
}

// NewJSONDir creates the backend, creating dir if needed.
func NewJSONDir(dir string) (*JSONDir, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create profiles directory: %w", err)
	}
	return &JSONDir{dir: dir}, nil
}

// RegisterJSONDir makes the JSON backend available under JSONBackendName.
func RegisterJSONDir(dir string) {
	database.RegisterProfileBackend(JSONBackendName, func() (database.ProfileRepository, error) {
		return NewJSONDir(dir)
	})
}

func (d *JSONDir) lock(ctx context.Context) (func(), error) {
	return fslock.Acquire(ctx, filepath.Join(d.dir, dirLockName), dirLockTimeout)
}

func (d *JSONDir) fileFor(namespace string) string {
	return filepath.Join(d.dir, SanitizeFolderName(namespace)+".json")
}

// LoadAll reads every namespace file. Unreadable files are reported as
// warnings and skipped.
func (d *JSONDir) LoadAll(ctx context.Context) ([]database.StoredProfile, []error, error) {
	release, err := d.lock(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	files, err := filepath.Glob(filepath.Join(d.dir, "*.json"))
	if err != nil {
		return nil, nil, fmt.Errorf("list profile files: %w", err)
	}
	sort.Strings(files)

	var result []database.StoredProfile
	var warnings []error
	for _, f := range files {
		nf, err := readNamespaceFile(f)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%w: %s: %v", ErrProfileCorrupt, filepath.Base(f), err))
			continue
		}
		ns := nf.Namespace
		if ns == "" {
			ns = strings.TrimSuffix(filepath.Base(f), ".json")
		}
		for _, p := range nf.Profiles {
			result = append(result, database.StoredProfile{
				Namespace:    ns,
				Name:         p.Name,
				Centroid:     p.Centroid,
				Members:      p.Members,
				LastComputed: p.LastComputed,
			})
		}
	}
	return result, warnings, nil
}

func readNamespaceFile(path string) (*namespaceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var nf namespaceFile
	if err := json.Unmarshal(data, &nf); err != nil {
		return nil, err
	}
	return &nf, nil
}

// SaveNamespace atomically replaces the namespace file.
func (d *JSONDir) SaveNamespace(ctx context.Context, namespace string, profiles []database.StoredProfile) error {
	if len(profiles) == 0 {
		return d.DeleteNamespace(ctx, namespace)
	}

	nf := namespaceFile{Namespace: namespace}
	for _, p := range profiles {
		members := p.Members
		if members == nil {
			members = []string{}
		}
		nf.Profiles = append(nf.Profiles, profileJSON{
			Name:         p.Name,
			Centroid:     p.Centroid,
			Members:      members,
			LastComputed: p.LastComputed.UTC(),
		})
	}
	data, err := json.MarshalIndent(nf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal namespace %s: %w", namespace, err)
	}

	release, err := d.lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	target := d.fileFor(namespace)
	tmp, err := os.CreateTemp(d.dir, ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(target), err)
	}
	return nil
}

// DeleteNamespace removes the namespace file if present.
func (d *JSONDir) DeleteNamespace(ctx context.Context, namespace string) error {
	release, err := d.lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := os.Remove(d.fileFor(namespace)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete namespace file: %w", err)
	}
	return nil
}
