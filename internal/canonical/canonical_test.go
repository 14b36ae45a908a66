package canonical_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/canonical"
)

func TestCanonicalize_deterministic(t *testing.T) {
	rows := [][]string{
		{"ID", "Qty"},
		{"A1", "10"},
		{"A2", "5"},
	}

	a, err := canonical.Canonicalize(rows)
	if err != nil {
		t.Fatal(err)
	}
	b, err := canonical.Canonicalize(rows)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("identical snapshots produced different canonical bytes")
	}
}

func TestCanonicalize_headerExcluded(t *testing.T) {
	withHeader := [][]string{
		{"ID", "Qty"},
		{"A1", "10"},
		{"A2", "5"},
	}
	renamedHeader := [][]string{
		{"Identifier", "Quantity"},
		{"A1", "10"},
		{"A2", "5"},
	}

	a, _ := canonical.Canonicalize(withHeader)
	b, _ := canonical.Canonicalize(renamedHeader)
	if !bytes.Equal(a, b) {
		t.Error("header content leaked into canonical bytes")
	}
}

func TestCanonicalize_insufficientData(t *testing.T) {
	cases := [][][]string{
		nil,
		{},
		{{"ID", "Qty"}}, // header only
	}
	for _, rows := range cases {
		if _, err := canonical.Canonicalize(rows); !errors.Is(err, canonical.ErrInsufficientData) {
			t.Errorf("Canonicalize(%v): got %v, want ErrInsufficientData", rows, err)
		}
	}
}

func TestCanonicalize_framingAmbiguity(t *testing.T) {
	a, _ := canonical.Canonicalize([][]string{{"h"}, {"ab", "c"}})
	b, _ := canonical.Canonicalize([][]string{{"h"}, {"a", "bc"}})
	if bytes.Equal(a, b) {
		t.Error(`["ab","c"] and ["a","bc"] canonicalized identically`)
	}
}

func TestCanonicalize_trailingEmptyCells(t *testing.T) {
	ragged := [][]string{
		{"ID", "Qty", "Note"},
		{"A1", "10", "ok"},
		{"A2", "5"},
	}
	padded := [][]string{
		{"ID", "Qty", "Note"},
		{"A1", "10", "ok"},
		{"A2", "5", ""},
	}

	a, _ := canonical.Canonicalize(ragged)
	b, _ := canonical.Canonicalize(padded)
	if !bytes.Equal(a, b) {
		t.Error("ragged row did not canonicalize as trailing empty cells")
	}
}

func TestCanonicalize_headerWidthExcluded(t *testing.T) {
	wideHeader := [][]string{
		{"ID", "Qty", "Notes"},
		{"A1", "10"},
	}
	narrowHeader := [][]string{
		{"ID", "Qty"},
		{"A1", "10"},
	}

	a, _ := canonical.Canonicalize(wideHeader)
	b, _ := canonical.Canonicalize(narrowHeader)
	if !bytes.Equal(a, b) {
		t.Error("header width leaked into canonical bytes")
	}

	da, _ := canonical.Snapshot(wideHeader)
	db, _ := canonical.Snapshot(narrowHeader)
	if da != db {
		t.Error("adding a header-only column changed the digest")
	}
}

func TestSnapshot_perturbationsChangeDigest(t *testing.T) {
	base := [][]string{
		{"ID", "Qty"},
		{"A1", "10"},
		{"A2", "5"},
	}

	perturbed := map[string][][]string{
		"cell edit": {
			{"ID", "Qty"},
			{"A1", "11"},
			{"A2", "5"},
		},
		"row order": {
			{"ID", "Qty"},
			{"A2", "5"},
			{"A1", "10"},
		},
		"cell swap": {
			{"ID", "Qty"},
			{"10", "A1"},
			{"A2", "5"},
		},
		"row removed": {
			{"ID", "Qty"},
			{"A1", "10"},
		},
		"row added": {
			{"ID", "Qty"},
			{"A1", "10"},
			{"A2", "5"},
			{"A3", "7"},
		},
	}

	want, err := canonical.Snapshot(base)
	if err != nil {
		t.Fatal(err)
	}

	for name, rows := range perturbed {
		got, err := canonical.Snapshot(rows)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got == want {
			t.Errorf("%s: digest unchanged", name)
		}
	}
}

func TestDigest_fixedLength(t *testing.T) {
	d := canonical.Digest([]byte("anything"))
	if len(d) != 32 {
		t.Fatalf("digest length = %d, want 32", len(d))
	}
	if d != canonical.Digest([]byte("anything")) {
		t.Error("Digest is not deterministic")
	}
}
