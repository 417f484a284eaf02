package internaldefs

import (
	"slices"
	"strings"
	"testing"

	"github.com/MrEthical07/adminauth"
)

func TestCountersCoverEveryCounter(t *testing.T) {
	seen := map[adminauth.MetricID]string{}
	names := map[string]bool{}
	for _, def := range Counters {
		if prev, dup := seen[def.ID]; dup {
			t.Fatalf("metric %d defined twice (%s, %s)", def.ID, prev, def.Name)
		}
		seen[def.ID] = def.Name
		if names[def.Name] {
			t.Fatalf("duplicate name %s", def.Name)
		}
		names[def.Name] = true
		if !strings.HasPrefix(def.Name, "adminauth_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("unexpected counter name %s", def.Name)
		}
	}
	for id := adminauth.MetricLoginSuccess; id < adminauth.MetricAuthorizeLatency; id++ {
		if _, ok := seen[id]; !ok {
			t.Fatalf("metric %d has no export definition", id)
		}
	}
}

func TestCumulative(t *testing.T) {
	tests := []struct {
		raw  []uint64
		want []uint64
	}{
		{nil, []uint64{0, 0, 0, 0, 0, 0, 0, 0}},
		{[]uint64{1, 2, 3}, []uint64{1, 3, 6, 6, 6, 6, 6, 6}},
		{[]uint64{1, 1, 1, 1, 1, 1, 1, 1, 9}, []uint64{1, 2, 3, 4, 5, 6, 7, 8}},
	}
	for _, tt := range tests {
		if got := Cumulative(tt.raw); !slices.Equal(got, tt.want) {
			t.Errorf("Cumulative(%v) = %v, want %v", tt.raw, got, tt.want)
		}
	}
	if Buckets[len(Buckets)-1].Le != "+Inf" {
		t.Fatal("last bucket must be +Inf")
	}
}
