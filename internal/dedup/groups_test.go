package dedup

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/kozaktomas/library-sorter/internal/imagemeta"
)

func TestGroupDuplicates_Small(t *testing.T) {
	items := []Item{
		{Meta: imagemeta.Entry{Path: "/a"}, Vector: []float32{1, 0}},
		{Meta: imagemeta.Entry{Path: "/b"}, Vector: []float32{0.999, 0.01}},
		{Meta: imagemeta.Entry{Path: "/c"}, Vector: []float32{0, 1}},
		{Meta: imagemeta.Entry{Path: "/d"}, Vector: []float32{0.01, 0.999}},
		{Meta: imagemeta.Entry{Path: "/e"}, Vector: []float32{1, 1}},
	}

	groups, err := GroupDuplicates(items)
	if err != nil {
		t.Fatalf("GroupDuplicates: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0][0].Meta.Path != "/a" || groups[0][1].Meta.Path != "/b" {
		t.Errorf("unexpected first group: %+v", groups[0])
	}
	if groups[1][0].Meta.Path != "/c" || groups[1][1].Meta.Path != "/d" {
		t.Errorf("unexpected second group: %+v", groups[1])
	}
}

func TestGroupDuplicates_DoesNotChain(t *testing.T) {
	// b is 10 degrees from a and c is 10 degrees from b, so a and c are
	// about 0.94 apart
	rot := func(deg float64) []float32 {
		rad := deg * math.Pi / 180
		return []float32{float32(math.Cos(rad)), float32(math.Sin(rad))}
	}
	items := []Item{
		{Meta: imagemeta.Entry{Path: "/c"}, Vector: rot(20)},
		{Meta: imagemeta.Entry{Path: "/a"}, Vector: rot(0)},
		{Meta: imagemeta.Entry{Path: "/b"}, Vector: rot(10)},
	}

	groups, err := GroupDuplicates(items)
	if err != nil {
		t.Fatalf("GroupDuplicates: %v", err)
	}
	if len(groups) != 1 || len(groups[0]) != 2 {
		t.Fatalf("expected one pair, got %+v", groups)
	}
	if groups[0][0].Meta.Path != "/a" || groups[0][1].Meta.Path != "/b" {
		t.Errorf("expected group seeded by /a with /b, got %+v", groups[0])
	}
	for _, it := range groups[0] {
		if it.Meta.Path == "/c" {
			t.Error("/c is not a duplicate of /a but was grouped with it")
		}
	}
}

func TestGroupDuplicates_LargeUsesIndex(t *testing.T) {
	// 100 random directions, plus a near copy of every tenth
	rng := rand.New(rand.NewSource(42))
	randomVector := func() []float32 {
		v := make([]float32, 64)
		for i := range v {
			v[i] = float32(rng.NormFloat64())
		}
		return v
	}

	var items []Item
	for i := 0; i < 100; i++ {
		v := randomVector()
		items = append(items, Item{Meta: imagemeta.Entry{Path: fmt.Sprintf("/img%03d", i)}, Vector: v})
		if i%10 == 0 {
			dup := append([]float32(nil), v...)
			dup[0] += 0.01
			items = append(items, Item{Meta: imagemeta.Entry{Path: fmt.Sprintf("/img%03d_copy", i)}, Vector: dup})
		}
	}

	groups, err := GroupDuplicates(items)
	if err != nil {
		t.Fatalf("GroupDuplicates: %v", err)
	}
	if len(groups) != 10 {
		t.Fatalf("expected 10 groups, got %d", len(groups))
	}
	for _, g := range groups {
		if len(g) != 2 {
			t.Errorf("group of size %d: %v", len(g), g)
		}
	}
}

func TestBestOf(t *testing.T) {
	group := []Item{
		{Meta: imagemeta.Entry{Path: "/a", Width: 10, Height: 10, Size: 5}},
		{Meta: imagemeta.Entry{Path: "/b", Width: 20, Height: 20, Size: 5}},
		{Meta: imagemeta.Entry{Path: "/c", Width: 20, Height: 20, Size: 5}},
	}
	keep, drop := BestOf(group)
	if keep.Meta.Path != "/b" {
		t.Errorf("keep = %s, want /b", keep.Meta.Path)
	}
	if len(drop) != 2 || drop[0].Meta.Path != "/a" || drop[1].Meta.Path != "/c" {
		t.Errorf("drop = %+v", drop)
	}
}
