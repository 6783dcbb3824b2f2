package dedup

import (
	"path/filepath"

	"github.com/kozaktomas/library-sorter/internal/constants"
	"github.com/kozaktomas/library-sorter/internal/imagemeta"
)

// DecisionKind enumerates the outcomes of Decide.
type DecisionKind int

const (
	// DecisionNone means the image neither duplicates nor matches well enough.
	DecisionNone DecisionKind = iota
	// DecisionAutoReplaceExisting means the source is a better copy of an existing file.
	DecisionAutoReplaceExisting
	// DecisionAutoDeleteSource means an existing file is at least as good as the source.
	DecisionAutoDeleteSource
	// DecisionPropose means a ProposedAction goes to review.
	DecisionPropose
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionAutoReplaceExisting:
		return "auto_replace_existing"
	case DecisionAutoDeleteSource:
		return "auto_delete_source"
	case DecisionPropose:
		return "propose"
	default:
		return "none"
	}
}

// Existing is a file already in the target folder with its similarity to the source.
type Existing struct {
	Meta       imagemeta.Entry
	Similarity float64
}

// DecisionInput is everything Decide looks at. Existing must be in directory
// order and must not contain the source.
type DecisionInput struct {
	Source       imagemeta.Entry
	Profile      string
	Similarity   float64
	Existing     []Existing
	Threshold    float64
	TargetFolder string
	// Occupant is the file currently at TargetFolder/<source name>, nil if free.
	Occupant *imagemeta.Entry
}

// Decision is the outcome for one source image.
type Decision struct {
	Kind    DecisionKind
	Source  imagemeta.Entry
	Profile string
	// Duplicate is the existing file involved in an automatic decision.
	Duplicate *imagemeta.Entry
	// Action is set for DecisionPropose.
	Action *ProposedAction
}

// Decide applies the duplicate rule first, then the suggestion rule.
// It touches neither the file system nor any store.
func Decide(in DecisionInput) Decision {
	d := Decision{Kind: DecisionNone, Source: in.Source, Profile: in.Profile}

	for i := range in.Existing {
		e := in.Existing[i]
		if e.Similarity < constants.DuplicateThreshold {
			continue
		}
		d.Duplicate = &e.Meta
		if imagemeta.Better(&in.Source, &e.Meta) {
			d.Kind = DecisionAutoReplaceExisting
		} else {
			d.Kind = DecisionAutoDeleteSource
		}
		return d
	}

	if in.Similarity < in.Threshold {
		return d
	}

	target := filepath.Join(in.TargetFolder, filepath.Base(in.Source.Path))
	if imagemeta.SamePath(in.Source.Path, target) {
		return d
	}

	action := &ProposedAction{
		SourcePath:    in.Source.Path,
		TargetPath:    target,
		Similarity:    in.Similarity,
		TargetProfile: in.Profile,
		Kind:          KindCopyNew,
	}
	if in.Occupant != nil && !imagemeta.SamePath(in.Occupant.Path, in.Source.Path) {
		action.Kind = KindConflictKeepBoth
		action.DisplayTargetPath = in.Occupant.Path
	}

	d.Kind = DecisionPropose
	d.Action = action
	return d
}
