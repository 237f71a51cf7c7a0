package internaldefs

import (
	"reflect"
	"strings"
	"testing"
)

func TestCumulativePadsShortInput(t *testing.T) {
	got := Cumulative([]uint64{1, 2, 3})
	want := []uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Cumulative = %v, want %v", got, want)
	}
	if got := Cumulative(nil); got[len(got)-1] != 0 {
		t.Fatalf("empty input total = %d, want 0", got[len(got)-1])
	}
}

func TestBucketsFollowLatencyBounds(t *testing.T) {
	if Buckets[0].Le != "0.005" || Buckets[0].Suffix != "0_005" {
		t.Fatalf("first bucket = %+v", Buckets[0])
	}
	if Buckets[3].Le != "0.05" {
		t.Fatalf("fourth bucket le = %q, want 0.05", Buckets[3].Le)
	}
	if last := Buckets[len(Buckets)-1]; last.Le != "+Inf" || last.Suffix != "inf" {
		t.Fatalf("last bucket = %+v", last)
	}
}

func TestDefinitionNamesUnique(t *testing.T) {
	seen := map[string]bool{AuditDropped.Name: true}
	for _, def := range Counters {
		if !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("counter %s must end in _total", def.Name)
		}
		if seen[def.Name] {
			t.Fatalf("duplicate metric name %s", def.Name)
		}
		seen[def.Name] = true
	}
}
