package profile

import (
	"testing"
)

func TestStore_UpdateProfileEnforcesExclusivity(t *testing.T) {
	s := NewStore()

	if _, err := s.UpdateProfile("Anna - Beach", [][]float32{{1, 0}, {1, 0}}, []string{"/x/1.jpg", "/x/2.jpg"}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if _, err := s.UpdateProfile("Anna - City", [][]float32{{1, 0}}, []string{"/x/2.jpg"}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	beach, _ := s.Get("Anna - Beach")
	if len(beach.Members) != 1 || beach.Members[0] != "/x/1.jpg" {
		t.Errorf("Beach members = %v, want [/x/1.jpg]", beach.Members)
	}
	owner, ok := s.OwnerOf("/x/2.jpg")
	if !ok || owner != "Anna - City" {
		t.Errorf("OwnerOf = %q, %v", owner, ok)
	}
}

func TestStore_UpdateProfileIdempotent(t *testing.T) {
	s := NewStore()
	vecs := [][]float32{{1, 0}, {0.8, 0.6}, {0, 1}}
	paths := []string{"/x/1.jpg", "/x/2.jpg", "/x/3.jpg"}

	first, err := s.UpdateProfile("Anna - Beach", vecs, paths)
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	second, err := s.UpdateProfile("Anna - Beach", vecs, paths)
	if err != nil {
		t.Fatalf("UpdateProfile again: %v", err)
	}

	if len(first.Centroid) != len(second.Centroid) {
		t.Fatalf("centroid length changed: %d vs %d", len(first.Centroid), len(second.Centroid))
	}
	for i := range first.Centroid {
		if first.Centroid[i] != second.Centroid[i] {
			t.Errorf("centroid[%d] = %v, then %v", i, first.Centroid[i], second.Centroid[i])
		}
	}
	if len(second.Members) != len(paths) {
		t.Fatalf("members = %v, want %v", second.Members, paths)
	}
	for i := range paths {
		if first.Members[i] != second.Members[i] {
			t.Errorf("members[%d] = %s, then %s", i, first.Members[i], second.Members[i])
		}
	}
	if s.Len() != 1 {
		t.Errorf("expected one profile, got %d", s.Len())
	}
}

func TestStore_UpdateProfileValidation(t *testing.T) {
	s := NewStore()
	if _, err := s.UpdateProfile("", nil, nil); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := s.UpdateProfile("A - B", [][]float32{{1}}, nil); err == nil {
		t.Error("expected error for misaligned input")
	}
}

func TestStore_UpdateProfileEmptyKeepsProfile(t *testing.T) {
	s := NewStore()
	p, err := s.UpdateProfile("Anna", nil, nil)
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if p.Name != "Anna - General" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.HasCentroid() || len(p.Members) != 0 {
		t.Errorf("expected absent centroid and no members, got %+v", p)
	}
	if p.LastComputed.IsZero() {
		t.Error("LastComputed not stamped")
	}
}

func TestStore_AllSortedAndCopied(t *testing.T) {
	s := NewStore()
	for _, name := range []string{"Zoe - A", "Anna - B", "Anna - A"} {
		s.UpdateProfile(name, [][]float32{{1}}, []string{"/" + name})
	}

	all := s.All()
	want := []string{"Anna - A", "Anna - B", "Zoe - A"}
	for i, p := range all {
		if p.Name != want[i] {
			t.Errorf("All()[%d] = %q, want %q", i, p.Name, want[i])
		}
	}

	// Mutating the copy does not touch the store
	all[0].Members = append(all[0].Members, "/evil")
	all[0].Centroid[0] = 42
	p, _ := s.Get("Anna - A")
	if len(p.Members) != 1 || p.Centroid[0] == 42 {
		t.Errorf("store mutated through snapshot: %+v", p)
	}
}

func TestStore_Namespaces(t *testing.T) {
	s := NewStore()
	s.UpdateProfile("Anna - A", [][]float32{{1}}, []string{"/1"})
	s.UpdateProfile("anna - B", [][]float32{{1}}, []string{"/2"})
	s.UpdateProfile("Zoe - A", [][]float32{{1}}, []string{"/3"})

	if got := s.Namespace("ANNA"); len(got) != 2 {
		t.Errorf("Namespace(ANNA) returned %d profiles, want 2", len(got))
	}
	if got := s.Namespaces(); len(got) != 2 {
		t.Errorf("Namespaces() = %v, want 2 entries", got)
	}

	removed := s.RemoveNamespace("anna")
	if len(removed) != 2 {
		t.Errorf("RemoveNamespace removed %v", removed)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_RemovePathAndAddPath(t *testing.T) {
	s := NewStore()
	s.UpdateProfile("A - X", [][]float32{{1}, {1}}, []string{"/1", "/2"})
	s.UpdateProfile("A - Y", [][]float32{{1}}, []string{"/3"})

	affected := s.RemovePath("/2")
	if len(affected) != 1 || affected[0] != "A - X" {
		t.Errorf("RemovePath affected = %v", affected)
	}
	if len(s.RemovePath("/missing")) != 0 {
		t.Error("RemovePath of unknown path reported changes")
	}

	if !s.AddPath("A - Y", "/1") {
		t.Fatal("AddPath returned false")
	}
	x, _ := s.Get("A - X")
	y, _ := s.Get("A - Y")
	if len(x.Members) != 0 {
		t.Errorf("X members = %v, want empty", x.Members)
	}
	if len(y.Members) != 2 {
		t.Errorf("Y members = %v, want 2", y.Members)
	}

	// Adding twice does not duplicate
	s.AddPath("A - Y", "/1")
	y, _ = s.Get("A - Y")
	if len(y.Members) != 2 {
		t.Errorf("duplicate member added: %v", y.Members)
	}

	if s.AddPath("A - Missing", "/9") {
		t.Error("AddPath to unknown profile returned true")
	}
	if !s.Remove("A - X") || s.Remove("A - X") {
		t.Error("Remove did not report existence correctly")
	}
}
