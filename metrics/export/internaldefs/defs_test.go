package internaldefs

import (
	"strings"
	"testing"
)

func TestCounterNamesUniqueAndSuffixed(t *testing.T) {
	seen := make(map[string]bool, len(CounterDefs))
	ids := make(map[uint16]bool, len(CounterDefs))
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "accountauth_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("unexpected counter name %q", def.Name)
		}
		if seen[def.Name] {
			t.Fatalf("duplicate counter name %q", def.Name)
		}
		if ids[uint16(def.ID)] {
			t.Fatalf("duplicate counter id %d", def.ID)
		}
		seen[def.Name] = true
		ids[uint16(def.ID)] = true
	}
}

func TestCounterFlowOutcomePairsUnique(t *testing.T) {
	seen := make(map[string]bool, len(CounterDefs))
	for _, def := range CounterDefs {
		if def.Flow == "" || def.Outcome == "" {
			t.Fatalf("%s needs a flow and an outcome", def.Name)
		}
		if !strings.Contains(def.Name, "_"+def.Flow+"_") {
			t.Fatalf("%s does not belong to flow %s", def.Name, def.Flow)
		}
		pair := def.Flow + "/" + def.Outcome
		if seen[pair] {
			t.Fatalf("duplicate flow outcome %s", pair)
		}
		seen[pair] = true
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if len(HistogramBounds) != 8 || len(HistogramBoundSuffix) != 8 {
		t.Fatal("bounds must match the eight engine buckets")
	}
}
