package sorter

import (
	"path/filepath"

	"github.com/kozaktomas/library-sorter/internal/supervisor"
)

// ReportTo forwards progress to a supervised operation.
func ReportTo(op *supervisor.Operation) ProgressFunc {
	return func(p ProgressInfo) {
		msg := p.Message
		if msg == "" && p.Path != "" {
			msg = filepath.Base(p.Path)
		}
		if p.Phase != "" {
			if msg == "" {
				msg = p.Phase
			} else {
				msg = p.Phase + ": " + msg
			}
		}
		if p.Indeterminate {
			op.ReportIndeterminate(msg)
			return
		}
		op.Report(p.Current, p.Total, msg)
	}
}
