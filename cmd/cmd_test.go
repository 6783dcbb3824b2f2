package cmd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/library-sorter/internal/config"
	"github.com/kozaktomas/library-sorter/internal/dedup"
	"github.com/kozaktomas/library-sorter/internal/supervisor"
)

func TestProposalsFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review", "proposals.json")
	actions := []dedup.ProposedAction{
		{SourcePath: "/lib/Anna/Mix/x.jpg", TargetPath: "/lib/Anna/x.jpg", TargetProfile: "Anna - General", Similarity: 0.93, Kind: dedup.KindCopyNew},
		{SourcePath: "/lib/Anna/Mix/y.jpg", TargetPath: "/lib/Anna/Beach/y.jpg", TargetProfile: "Anna - Beach", Similarity: 0.88, Kind: dedup.KindConflictKeepBoth},
	}

	if err := writeProposals(path, 0.85, actions); err != nil {
		t.Fatalf("writeProposals failed: %v", err)
	}
	file, err := readProposals(path)
	if err != nil {
		t.Fatalf("readProposals failed: %v", err)
	}

	if file.Threshold != 0.85 || len(file.Actions) != 2 {
		t.Fatalf("unexpected file %+v", file)
	}
	for _, a := range file.Actions {
		if a.Approved {
			t.Errorf("expected new proposals to be unapproved: %+v", a)
		}
	}
	if file.Actions[1].Kind != dedup.KindConflictKeepBoth {
		t.Errorf("expected kind to survive, got %s", file.Actions[1].Kind)
	}
}

func TestReadProposals_Invalid(t *testing.T) {
	if _, err := readProposals(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApprovedActions(t *testing.T) {
	file := &proposalsFile{Actions: []reviewedAction{
		{ProposedAction: dedup.ProposedAction{SourcePath: "a"}, Approved: true},
		{ProposedAction: dedup.ProposedAction{SourcePath: "b"}},
		{ProposedAction: dedup.ProposedAction{SourcePath: "c"}, Approved: true},
	}}

	got := approvedActions(file, false)
	if len(got) != 2 || got[0].SourcePath != "a" || got[1].SourcePath != "c" {
		t.Errorf("expected approved a and c in order, got %+v", got)
	}
	if got := approvedActions(file, true); len(got) != 3 {
		t.Errorf("expected all 3 actions with --all, got %d", len(got))
	}
}

func TestPhaseOf(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"embedding: a.jpg", "embedding"},
		{"scanning", "scanning"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := phaseOf(tt.msg); got != tt.want {
			t.Errorf("phaseOf(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestProgressReporter_QuietAndNil(t *testing.T) {
	r := &progressReporter{quiet: true}
	r.observe(supervisor.Progress{Processed: 1, Total: 2, Message: "embedding: a.jpg"})
	if r.bar != nil {
		t.Error("quiet reporter must not create a bar")
	}
	r.finish()

	var nilReporter *progressReporter
	nilReporter.finish()
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 7*time.Minute, "2h7m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestResolveServeHostPort(t *testing.T) {
	cfg := config.WebConfig{Port: 9000, Host: "127.0.0.1"}
	cmd := serveCmd
	if err := cmd.Flags().Set("port", "9100"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = cmd.Flags().Set("port", "8080")
		cmd.Flags().Lookup("port").Changed = false
	})

	resolveServeHostPort(cmd, &cfg)
	if cfg.Port != 9100 {
		t.Errorf("expected flag to override port, got %d", cfg.Port)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("expected unchanged host to keep env value, got %s", cfg.Host)
	}
}
