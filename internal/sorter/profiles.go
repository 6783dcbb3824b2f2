package sorter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kozaktomas/library-sorter/internal/constants"
	"github.com/kozaktomas/library-sorter/internal/fileops"
	"github.com/kozaktomas/library-sorter/internal/imagemeta"
	"github.com/kozaktomas/library-sorter/internal/profile"
)

// GenerateProfile builds a profile from the images directly inside folder and
// persists its namespace. Existing members are replaced.
func (s *Service) GenerateProfile(ctx context.Context, name, folder string, progress ProgressFunc) (*profile.Profile, error) {
	name = profile.NormalizeName(name)
	if name == "" {
		return nil, fmt.Errorf("profile name is required")
	}
	paths, err := s.scanner.ListFiles(folder)
	if err != nil {
		return nil, err
	}
	p, err := s.generate(ctx, name, paths, progress)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveNamespacesOf(ctx, s.persister, []string{name}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) generate(ctx context.Context, name string, paths []string, progress ProgressFunc) (*profile.Profile, error) {
	items, err := s.vectorsFor(ctx, paths, "embedding", progress)
	if err != nil {
		return nil, err
	}
	vecs := make([][]float32, len(items))
	members := make([]string, len(items))
	for i, it := range items {
		vecs[i] = it.Vector
		members[i] = it.Meta.Path
	}
	p, err := s.store.UpdateProfile(name, vecs, members)
	if err != nil {
		return nil, err
	}
	log.Printf("Profile %s: %d of %d images kept", p.Name, len(p.Members), len(paths))
	return p, nil
}

// AutoCreateResult summarizes an auto-create pass.
type AutoCreateResult struct {
	Namespaces int      `json:"namespaces"`
	Profiles   []string `json:"profiles"`
	Cleared    []string `json:"cleared,omitempty"`
}

// AutoCreateProfiles walks every namespace folder under the library root and
// builds one profile per folder that directly contains images. Images in the
// namespace folder itself form the default profile; a nested folder a/b forms
// "<namespace> - a - b". Source folders are skipped. Known profiles whose
// folder no longer holds images are emptied.
func (s *Service) AutoCreateProfiles(ctx context.Context, progress ProgressFunc) (*AutoCreateResult, error) {
	if s.root == "" {
		return nil, ErrNoLibraryRoot
	}
	dirs, err := s.modelDirs()
	if err != nil {
		return nil, err
	}

	result := &AutoCreateResult{Profiles: []string{}}
	var walkErr error
	for i, dir := range dirs {
		if walkErr = ctx.Err(); walkErr != nil {
			break
		}
		ns := filepath.Base(dir)
		if s.sources.Contains(ns) {
			continue
		}
		progress.report(ProgressInfo{Phase: "scanning", Current: i + 1, Total: len(dirs), Message: ns})
		result.Namespaces++

		if walkErr = s.autoCreateDir(ctx, dir, ns, nil, result, progress); walkErr != nil {
			break
		}
	}

	touched := append(append([]string{}, result.Profiles...), result.Cleared...)
	if len(touched) > 0 {
		if err := s.store.SaveNamespacesOf(context.WithoutCancel(ctx), s.persister, touched); err != nil {
			return result, err
		}
	}
	return result, walkErr
}

func (s *Service) autoCreateDir(ctx context.Context, dir, ns string, parts []string, result *AutoCreateResult, progress ProgressFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	label := constants.DefaultLabel
	if len(parts) > 0 {
		label = strings.Join(parts, constants.NameSeparator)
	}
	name := profile.FormatName(ns, label)

	paths, err := s.scanner.ListFiles(dir)
	if err != nil {
		log.Printf("Warning: %v", err)
		return nil
	}
	switch {
	case len(paths) > 0:
		p, err := s.generate(ctx, name, paths, progress)
		if err != nil {
			return err
		}
		result.Profiles = append(result.Profiles, p.Name)
	default:
		if _, ok := s.store.Get(name); ok {
			if _, err := s.store.UpdateProfile(name, nil, nil); err != nil {
				return err
			}
			result.Cleared = append(result.Cleared, profile.NormalizeName(name))
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("Warning: reading subfolders of %s: %v", dir, err)
		return nil
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || s.sources.Contains(e.Name()) {
			continue
		}
		sub := append(append([]string{}, parts...), e.Name())
		if err := s.autoCreateDir(ctx, filepath.Join(dir, e.Name()), ns, sub, result, progress); err != nil {
			return err
		}
	}
	return nil
}

// RemoveProfile deletes a profile. Its files are not touched.
func (s *Service) RemoveProfile(ctx context.Context, name string) error {
	name = profile.NormalizeName(name)
	if !s.store.Remove(name) {
		return fmt.Errorf("profile %q not found", name)
	}
	return s.store.SaveNamespacesOf(ctx, s.persister, []string{name})
}

// RemoveNamespace deletes every profile of a namespace and returns their
// names. Files are not touched.
func (s *Service) RemoveNamespace(ctx context.Context, ns string) ([]string, error) {
	removed := s.store.RemoveNamespace(ns)
	if len(removed) == 0 {
		return nil, fmt.Errorf("namespace %q has no profiles", ns)
	}
	// Backends key namespaces by their stored spelling
	stored := profile.NamespaceOf(removed[0])
	if err := s.persister.DeleteNamespace(ctx, stored); err != nil {
		return removed, fmt.Errorf("delete namespace %s: %w", stored, err)
	}
	return removed, nil
}

// SplitCandidate describes a profile analysed for splitting.
type SplitCandidate struct {
	Profile string `json:"profile"`
	Members int    `json:"members"`
	Suggest bool   `json:"suggest"`
}

// SplitCandidates analyses the profiles of a namespace. Profiles with at
// least SplitConsiderMinMembers existing members are returned; those with
// SplitSuggestMinMembers or more are flagged.
func (s *Service) SplitCandidates(ns string) []SplitCandidate {
	var out []SplitCandidate
	for _, p := range s.store.Namespace(ns) {
		n := 0
		for _, m := range p.Members {
			if _, err := os.Stat(m); err == nil {
				n++
			}
		}
		if n < constants.SplitConsiderMinMembers {
			continue
		}
		out = append(out, SplitCandidate{
			Profile: p.Name,
			Members: n,
			Suggest: n >= constants.SplitSuggestMinMembers,
		})
	}
	return out
}

// SplitResult summarizes a profile split.
type SplitResult struct {
	Original string   `json:"original"`
	Parts    []string `json:"parts"`
	Moved    int      `json:"moved"`
	Unmoved  int      `json:"unmoved"`
}

// SplitProfile divides a profile's existing images in path order into two
// halves, moves each half into its own "<label> - Part N" folder, builds a
// profile per half and removes the original. A file whose destination is
// already taken stays where it is but still joins its half.
func (s *Service) SplitProfile(ctx context.Context, name string, progress ProgressFunc) (*SplitResult, error) {
	if s.root == "" {
		return nil, ErrNoLibraryRoot
	}
	name = profile.NormalizeName(name)
	orig, ok := s.store.Get(name)
	if !ok {
		return nil, fmt.Errorf("profile %q not found", name)
	}

	var members []string
	for _, m := range orig.Members {
		if fileops.Exists(m) {
			members = append(members, m)
		}
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("profile %q has no images", name)
	}
	sort.Strings(members)

	ns, label := profile.ParseName(orig.Name)
	base := label
	if strings.EqualFold(label, constants.DefaultLabel) {
		base = ns
	}
	nsDir, err := s.namespaceDir(ns)
	if errors.Is(err, ErrNamespaceNotFound) {
		nsDir = filepath.Join(s.root, profile.SanitizeFolderName(ns))
	} else if err != nil {
		return nil, err
	}

	halves := [][]string{members[:len(members)/2], members[len(members)/2:]}
	result := &SplitResult{Original: orig.Name}
	for i := range halves {
		part := profile.FormatName(ns, fmt.Sprintf("%s - Part %d", base, i+1))
		if _, exists := s.store.Get(part); exists {
			return nil, fmt.Errorf("profile %q already exists", part)
		}
		result.Parts = append(result.Parts, part)
	}

	// Moved files are recorded as they go, so a cancelled split leaves the
	// store matching the disk.
	for _, part := range result.Parts {
		s.store.Put(&profile.Profile{Name: part})
	}
	touched := append([]string{orig.Name}, result.Parts...)
	placed := make([][]string, len(halves))
	done := 0
	for i, half := range halves {
		folder := TargetFolder(nsDir, result.Parts[i])
		for _, src := range half {
			if err := ctx.Err(); err != nil {
				return result, errors.Join(err, s.store.SaveNamespacesOf(context.WithoutCancel(ctx), s.persister, touched))
			}
			member := s.moveInto(ctx, src, folder)
			if member != src {
				result.Moved++
			} else {
				result.Unmoved++
			}
			s.store.AddPath(result.Parts[i], member)
			placed[i] = append(placed[i], member)
			done++
			progress.report(ProgressInfo{Phase: "moving", Current: done, Total: len(members), Path: member})
		}
	}

	for i, part := range result.Parts {
		progress.report(ProgressInfo{Phase: "embedding", Indeterminate: true, Message: part})
		if _, err := s.generate(ctx, part, placed[i], progress); err != nil {
			return result, errors.Join(err, s.store.SaveNamespacesOf(context.WithoutCancel(ctx), s.persister, touched))
		}
	}
	s.store.Remove(orig.Name)
	log.Printf("Split profile %s into %s (%d files moved, %d left in place)",
		orig.Name, strings.Join(result.Parts, ", "), result.Moved, result.Unmoved)
	if err := s.store.SaveNamespacesOf(context.WithoutCancel(ctx), s.persister, touched); err != nil {
		return result, err
	}
	return result, nil
}

// moveInto moves src into folder without replacing anything and returns the
// file's path afterwards.
func (s *Service) moveInto(ctx context.Context, src, folder string) string {
	dst := filepath.Join(folder, filepath.Base(src))
	if imagemeta.SamePath(src, dst) {
		return src
	}
	if err := fileops.Copy(src, dst, false); err != nil {
		log.Printf("Warning: split keeps %s in place: %v", src, err)
		return src
	}
	if err := fileops.Delete(src); err != nil {
		log.Printf("Warning: %v", err)
		return dst
	}
	if err := s.cache.Invalidate(ctx, src); err != nil {
		log.Printf("Warning: %v", err)
	}
	return dst
}
