package cache

import "testing"

func mustNew(t *testing.T, cfg Config) *Cache {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New(%+v) error: %v", cfg, err)
	}
	return c
}

// S1: minimal admit/evict.
func TestScenarioS1MinimalAdmitEvict(t *testing.T) {
	c := mustNew(t, Config{Capacity: 100, HotLowerBound: 0.5, ColdLowerBound: 0, EvictHotForCold: true})

	r1 := c.LookupAndAdmit(1 /* A */, 1, 60, 0)
	if r1.Hit || !r1.Admitted {
		t.Fatalf("request 1: %+v, want miss+admit", r1)
	}

	r2 := c.LookupAndAdmit(2 /* B */, 2, 60, 0)
	if r2.Hit || !r2.Admitted || r2.ColdEvictions != 1 || r2.HotEvictions != 0 {
		t.Fatalf("request 2: %+v, want miss+admit+1 cold eviction", r2)
	}

	r3 := c.LookupAndAdmit(1 /* A again */, 3, 60, 0)
	if r3.Hit || !r3.Admitted || r3.ColdEvictions != 1 {
		t.Fatalf("request 3: %+v, want miss+admit+1 cold eviction", r3)
	}

	if r1.Hit || r2.Hit || r3.Hit {
		t.Fatal("hit count should be 0 across all three requests")
	}
}

// S2: HOT protection.
func TestScenarioS2HotProtection(t *testing.T) {
	c := mustNew(t, Config{Capacity: 100, HotLowerBound: 0.5, ColdLowerBound: 0, EvictHotForCold: false})

	admitA := c.LookupAndAdmit(1, 0, 60, 0.9)
	if !admitA.Admitted {
		t.Fatal("A should be admitted HOT")
	}

	r := c.LookupAndAdmit(2, 1, 60, 0.1)
	if r.Admitted {
		t.Fatalf("B should be rejected: %+v", r)
	}
	if !c.Contains(1) {
		t.Fatal("A must remain resident after B's rejected admission")
	}
}

// S3: promotion.
func TestScenarioS3Promotion(t *testing.T) {
	c := mustNew(t, Config{Capacity: 1000, HotLowerBound: 0.5, ColdLowerBound: 0, EvictHotForCold: true})

	c.LookupAndAdmit(1, 0, 60, 0.1) // A admitted COLD
	if c.ColdSize() != 60 || c.HotSize() != 0 {
		t.Fatalf("after initial admit: hot=%d cold=%d, want hot=0 cold=60", c.HotSize(), c.ColdSize())
	}

	r := c.LookupAndAdmit(1, 1, 60, 0.9) // access again with high p
	if !r.Hit {
		t.Fatal("second access to A should be a hit")
	}
	if c.HotSize() != 60 || c.ColdSize() != 0 {
		t.Fatalf("after promotion: hot=%d cold=%d, want hot=60 cold=0", c.HotSize(), c.ColdSize())
	}
}

func TestMissNotAdmittedLeavesCacheUnchanged(t *testing.T) {
	c := mustNew(t, Config{Capacity: 100, HotLowerBound: 0.5, ColdLowerBound: 0.5, EvictHotForCold: true})
	before := c.Size()

	r := c.LookupAndAdmit(1, 0, 60, 0.1) // p < cold_lb: rejected
	if r.Admitted {
		t.Fatal("p below cold_lb should never admit")
	}
	if c.Size() != before {
		t.Fatalf("cache size changed on a rejected admission: %d != %d", c.Size(), before)
	}
}

func TestHitNeverChangesSize(t *testing.T) {
	c := mustNew(t, Config{Capacity: 100, HotLowerBound: 0.5, ColdLowerBound: 0, EvictHotForCold: true})
	c.LookupAndAdmit(1, 0, 60, 0.9)
	before := c.Size()

	r := c.LookupAndAdmit(1, 1, 60, 0.9)
	if !r.Hit {
		t.Fatal("expected a hit")
	}
	if c.Size() != before {
		t.Fatalf("hit changed current_size: %d != %d", c.Size(), before)
	}
}

func TestOversizedRequestNeverAdmitted(t *testing.T) {
	c := mustNew(t, Config{Capacity: 100, HotLowerBound: 0.5, ColdLowerBound: 0, EvictHotForCold: true})
	r := c.LookupAndAdmit(1, 0, 150, 0.99)
	if r.Admitted {
		t.Fatal("a request larger than capacity must never be admitted")
	}
}

func TestEvictPrefersColdOverHot(t *testing.T) {
	c := mustNew(t, Config{Capacity: 100, HotLowerBound: 0.5, ColdLowerBound: 0, EvictHotForCold: true})
	c.LookupAndAdmit(1, 0, 50, 0.9) // HOT
	c.LookupAndAdmit(2, 1, 40, 0.1) // COLD

	r := c.LookupAndAdmit(3, 2, 20, 0.1) // forces one eviction
	if r.ColdEvictions != 1 || r.HotEvictions != 0 {
		t.Fatalf("expected COLD to be evicted first, got %+v", r)
	}
	if !c.Contains(1) {
		t.Fatal("HOT entry must survive while COLD has evictable entries")
	}
}

func TestEvictFallsBackToHotWhenColdEmpty(t *testing.T) {
	c := mustNew(t, Config{Capacity: 100, HotLowerBound: 0.1, ColdLowerBound: 0, EvictHotForCold: true})
	c.LookupAndAdmit(1, 0, 60, 0.9) // HOT, nothing in COLD
	c.LookupAndAdmit(2, 1, 60, 0.9) // forces eviction; COLD is empty so HOT must be touched

	if !c.Contains(2) {
		t.Fatal("the admitted request should be resident")
	}
	if c.Contains(1) {
		t.Fatal("object 1 should have been evicted from HOT")
	}
}

func TestEvictRefusesOnEmptyCache(t *testing.T) {
	c := mustNew(t, Config{Capacity: 10, HotLowerBound: 0.5, ColdLowerBound: 0, EvictHotForCold: true})
	var result Result
	if c.evict(&result) {
		t.Fatal("evict on an empty cache should report false, not dereference a missing node")
	}
}

func TestDemoteStaleSingleIncrement(t *testing.T) {
	c := mustNew(t, Config{Capacity: 1000, HotLowerBound: 0.5, ColdLowerBound: 0, EvictHotForCold: true})
	c.LookupAndAdmit(1, 0, 100, 0.9)
	c.LookupAndAdmit(2, 1, 100, 0.9)

	before := c.ColdSize()
	demoted := c.DemoteStale(5) // both were last_seen <= 5
	if demoted != 2 {
		t.Fatalf("demoted %d nodes, want 2", demoted)
	}
	if c.ColdSize() != before+200 {
		t.Fatalf("cold size = %d, want %d (each demoted node counted exactly once)", c.ColdSize(), before+200)
	}
	if c.HotSize() != 0 {
		t.Fatalf("hot size = %d, want 0 after demoting everything", c.HotSize())
	}
}
