// Package dedup decides what to do with an image that matched a profile:
// resolve it against visual duplicates already in the profile folder, or
// propose moving it there.
package dedup

// ActionKind is the kind of file operation a proposal asks for.
type ActionKind string

const (
	KindCopyNew                  ActionKind = "copy_new"
	KindOverwriteExisting        ActionKind = "overwrite_existing"
	KindKeepExistingDeleteSource ActionKind = "keep_existing_delete_source"
	KindConflictKeepBoth         ActionKind = "conflict_keep_both"
	KindNoAction                 ActionKind = "no_action"
)

// ProposedAction is a file operation awaiting review.
type ProposedAction struct {
	SourcePath        string     `json:"source_path"`
	DisplayTargetPath string     `json:"display_target_path,omitempty"`
	TargetPath        string     `json:"target_path"`
	Similarity        float64    `json:"similarity"`
	TargetProfile     string     `json:"target_profile"`
	Kind              ActionKind `json:"kind"`
}
