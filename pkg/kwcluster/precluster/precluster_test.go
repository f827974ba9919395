package precluster

import (
	"reflect"
	"testing"
)

func defaultClusterer() *Clusterer {
	return New(nil, DefaultConfig())
}

func TestClusterEmpty(t *testing.T) {
	if got := defaultClusterer().Cluster(nil); len(got) != 0 {
		t.Errorf("empty input yielded %v", got)
	}
}

func TestClusterStopwordOnlyKeywordsDiscarded(t *testing.T) {
	got := defaultClusterer().Cluster([]Keyword{
		{ID: 1, Text: "der die das"},
		{ID: 2, Text: "laufschuhe"},
	})
	if len(got) != 1 {
		t.Fatalf("clusters = %v, want 1", got)
	}
	if !reflect.DeepEqual(got[0].MemberIDs, []int64{2}) {
		t.Errorf("members = %v, want [2]", got[0].MemberIDs)
	}
}

func TestClusterSingleton(t *testing.T) {
	got := defaultClusterer().Cluster([]Keyword{
		{ID: 7, Text: "wanderschuhe", DemandMonthly: 50},
	})
	if len(got) != 1 {
		t.Fatalf("clusters = %v, want 1", got)
	}
	c := got[0]
	if c.Cohesion != 1.0 {
		t.Errorf("singleton cohesion = %f, want 1.0", c.Cohesion)
	}
	if c.Label != "wanderschuhe" {
		t.Errorf("label = %q", c.Label)
	}
	if c.TotalDemand != 50 {
		t.Errorf("total demand = %f", c.TotalDemand)
	}
}

func TestClusterGroupsNearDuplicates(t *testing.T) {
	got := defaultClusterer().Cluster([]Keyword{
		{ID: 1, Text: "laufschuhe damen", DemandMonthly: 100},
		{ID: 2, Text: "laufschuhe damen günstig", DemandMonthly: 100},
		{ID: 3, Text: "wanderschuhe", DemandMonthly: 100},
	})
	if len(got) != 2 {
		t.Fatalf("clusters = %+v, want 2", got)
	}
	if !reflect.DeepEqual(got[0].MemberIDs, []int64{1, 2}) {
		t.Errorf("first cluster members = %v, want [1 2]", got[0].MemberIDs)
	}
}

func TestClusterLaufschuheScenario(t *testing.T) {
	// With only three keywords the IDF discount on shared n-grams is at
	// its strongest, so the variant pair needs a recall-leaning threshold.
	cfg := DefaultConfig()
	cfg.EdgeThreshold = 0.4

	got := New(nil, cfg).Cluster([]Keyword{
		{ID: 1, Text: "laufschuhe damen", DemandMonthly: 100},
		{ID: 2, Text: "laufschuhe herren", DemandMonthly: 100},
		{ID: 3, Text: "wanderschuhe", DemandMonthly: 100},
	})
	if len(got) != 2 {
		t.Fatalf("clusters = %+v, want 2", got)
	}

	// Sorted by total demand descending: the laufschuhe pair first.
	if got[0].TotalDemand != 200 || got[1].TotalDemand != 100 {
		t.Errorf("demands = %f, %f, want 200, 100", got[0].TotalDemand, got[1].TotalDemand)
	}
	if !reflect.DeepEqual(got[0].MemberIDs, []int64{1, 2}) {
		t.Errorf("first cluster members = %v, want [1 2]", got[0].MemberIDs)
	}
	if !reflect.DeepEqual(got[1].MemberIDs, []int64{3}) {
		t.Errorf("second cluster members = %v, want [3]", got[1].MemberIDs)
	}
}

func TestNewDefaultsPartialConfig(t *testing.T) {
	// Setting only the threshold must not zero out the similarity
	// weights or the n-gram window.
	c := New(nil, Config{EdgeThreshold: 0.4})
	def := DefaultConfig()
	if c.cfg.CharWeight != def.CharWeight || c.cfg.StemWeight != def.StemWeight {
		t.Errorf("weights = %v/%v, want %v/%v",
			c.cfg.CharWeight, c.cfg.StemWeight, def.CharWeight, def.StemWeight)
	}
	if c.cfg.NGramMin != def.NGramMin || c.cfg.NGramMax != def.NGramMax {
		t.Errorf("ngram window = %d..%d, want %d..%d",
			c.cfg.NGramMin, c.cfg.NGramMax, def.NGramMin, def.NGramMax)
	}
	if c.cfg.Seed != def.Seed {
		t.Errorf("seed = %d, want %d", c.cfg.Seed, def.Seed)
	}
	if c.cfg.EdgeThreshold != 0.4 {
		t.Errorf("threshold = %v, want 0.4", c.cfg.EdgeThreshold)
	}

	got := c.Cluster([]Keyword{
		{ID: 1, Text: "laufschuhe damen", DemandMonthly: 100},
		{ID: 2, Text: "laufschuhe herren", DemandMonthly: 100},
		{ID: 3, Text: "wanderschuhe", DemandMonthly: 100},
	})
	if len(got) != 2 {
		t.Fatalf("clusters = %+v, want 2", got)
	}
	if !reflect.DeepEqual(got[0].MemberIDs, []int64{1, 2}) {
		t.Errorf("first cluster members = %v, want [1 2]", got[0].MemberIDs)
	}
}

func TestClusterCohesionBounds(t *testing.T) {
	got := defaultClusterer().Cluster([]Keyword{
		{ID: 1, Text: "laufschuhe damen"},
		{ID: 2, Text: "laufschuhe herren"},
		{ID: 3, Text: "laufschuhe kinder"},
		{ID: 4, Text: "wanderschuhe"},
		{ID: 5, Text: "gartenmöbel"},
	})
	for _, c := range got {
		if c.Cohesion < 0 || c.Cohesion > 1 {
			t.Errorf("cluster %q cohesion %f out of [0,1]", c.Label, c.Cohesion)
		}
		if len(c.MemberIDs) == 1 && c.Cohesion != 1.0 {
			t.Errorf("singleton %q cohesion %f, want 1.0", c.Label, c.Cohesion)
		}
	}
}

func TestClusterDeterministic(t *testing.T) {
	keywords := []Keyword{
		{ID: 1, Text: "laufschuhe damen", DemandMonthly: 10},
		{ID: 2, Text: "laufschuhe herren", DemandMonthly: 20},
		{ID: 3, Text: "laufschuhe kinder", DemandMonthly: 30},
		{ID: 4, Text: "wanderschuhe damen", DemandMonthly: 40},
		{ID: 5, Text: "wanderschuhe herren", DemandMonthly: 50},
		{ID: 6, Text: "gartenmöbel set", DemandMonthly: 60},
	}

	first := defaultClusterer().Cluster(keywords)
	for i := 0; i < 5; i++ {
		if got := defaultClusterer().Cluster(keywords); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs:\n%+v\nvs\n%+v", i, got, first)
		}
	}
}

func TestCharNGramsPadding(t *testing.T) {
	grams := charNGrams("ab", 3, 3)
	// " ab " has exactly two 3-grams: " ab" and "ab ".
	want := []string{" ab", "ab "}
	if !reflect.DeepEqual(grams, want) {
		t.Errorf("grams = %q, want %q", grams, want)
	}
}

func TestCharNGramsLengthRange(t *testing.T) {
	grams := charNGrams("abcd", 3, 5)
	counts := map[int]int{}
	for _, g := range grams {
		counts[len([]rune(g))]++
	}
	// " abcd " (6 runes): 4 trigrams, 3 four-grams, 2 five-grams.
	if counts[3] != 4 || counts[4] != 3 || counts[5] != 2 {
		t.Errorf("length counts = %v", counts)
	}
}
