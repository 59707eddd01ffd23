// Command hrcache-compare replays a trace through several baseline
// cache admission policies (plain LRU, ristretto, freecache, otter,
// TinyLFU) and reports their object/byte miss percentages next to each
// other, for comparison against the Hazard-Rate policy's own numbers
// from cmd/hrcache.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/coocood/freecache"
	"github.com/dgraph-io/ristretto"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/maypok86/otter/v2"
	tinylfu "github.com/vmihailenco/go-tinylfu"

	"github.com/codeGROOVE-dev/hrcache/trace"
)

// nominalObjectSize is the assumed average object size used to convert
// a byte capacity into an item-count capacity for the count-based
// baselines (plain LRU, otter, TinyLFU), matching the 1024-byte default
// the teacher's own benchmarks/cmd/mem_* harnesses assume.
const nominalObjectSize = 1024

// baseline is a uniform admission-policy interface: each wraps one of
// the pack's cache libraries, probing and inserting on a miss.
type baseline interface {
	// Access probes the object, inserting it on a miss. It returns
	// whether the probe was a hit.
	Access(oid int, size int) (hit bool)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "hrcache-compare:", err)
		os.Exit(1)
	}
}

func run() error {
	filePath := flag.String("file-path", "", "trace file path (required)")
	cacheSize := flag.Int64("cache-size", 100*1024*1024, "cache capacity in bytes")
	flag.Parse()

	if *filePath == "" {
		return errors.New("--file-path is required")
	}

	itemCapacity := int(*cacheSize / nominalObjectSize)
	if itemCapacity < 1 {
		itemCapacity = 1
	}

	policies, err := newBaselines(itemCapacity, *cacheSize)
	if err != nil {
		return fmt.Errorf("configure baselines: %w", err)
	}

	for _, p := range policies {
		var requests, misses int64
		var totalBytes, missBytes int64

		src, err := trace.Open(*filePath)
		if err != nil {
			return fmt.Errorf("open trace: %w", err)
		}

		for {
			req, err := src.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				src.Close()
				return fmt.Errorf("read trace: %w", err)
			}
			requests++
			totalBytes += int64(req.Size)
			if !p.policy.Access(req.ObjectID, req.Size) {
				misses++
				missBytes += int64(req.Size)
			}
		}
		src.Close()

		missPct, missBytesPct := 0.0, 0.0
		if requests > 0 {
			missPct = 100 * float64(misses) / float64(requests)
		}
		if totalBytes > 0 {
			missBytesPct = 100 * float64(missBytes) / float64(totalBytes)
		}
		fmt.Printf("policy=%s requests=%d miss_pct=%.4f miss_bytes_pct=%.4f\n",
			p.name, requests, missPct, missBytesPct)
	}

	return nil
}

type namedBaseline struct {
	name   string
	policy baseline
}

func newBaselines(itemCapacity int, byteCapacity int64) ([]namedBaseline, error) {
	lruCache, err := lru.New[int, struct{}](itemCapacity)
	if err != nil {
		return nil, fmt.Errorf("golang-lru: %w", err)
	}

	ristrettoCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: byteCapacity / nominalObjectSize * 10,
		MaxCost:     byteCapacity,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}

	freecacheCache := freecache.NewCache(int(byteCapacity))

	otterCache := otter.Must(&otter.Options[int, struct{}]{MaximumSize: itemCapacity})
	otterBaseline := baselineFunc(func(oid, _ int) bool {
		if _, ok := otterCache.GetIfPresent(oid); ok {
			return true
		}
		otterCache.Set(oid, struct{}{})
		return false
	})

	tinylfuCache := tinylfu.NewSync(itemCapacity, itemCapacity*10)
	tinylfuBaseline := baselineFunc(func(oid, size int) bool {
		key := strconv.Itoa(oid)
		if _, ok := tinylfuCache.Get(key); ok {
			return true
		}
		tinylfuCache.Set(&tinylfu.Item{Key: key, Value: make([]byte, size)})
		return false
	})

	return []namedBaseline{
		{"lru", &lruBaseline{cache: lruCache}},
		{"ristretto", &ristrettoBaseline{cache: ristrettoCache}},
		{"freecache", &freecacheBaseline{cache: freecacheCache}},
		{"otter", otterBaseline},
		{"tinylfu", tinylfuBaseline},
	}, nil
}

// baselineFunc adapts a plain func to the baseline interface, used for
// libraries whose cache handle's exact type is awkward to spell out
// (go-tinylfu's NewSync return type).
type baselineFunc func(oid, size int) bool

func (f baselineFunc) Access(oid, size int) bool { return f(oid, size) }

type lruBaseline struct{ cache *lru.Cache[int, struct{}] }

func (b *lruBaseline) Access(oid, _ int) bool {
	if _, ok := b.cache.Get(oid); ok {
		return true
	}
	b.cache.Add(oid, struct{}{})
	return false
}

type ristrettoBaseline struct{ cache *ristretto.Cache }

func (b *ristrettoBaseline) Access(oid, size int) bool {
	if _, ok := b.cache.Get(oid); ok {
		return true
	}
	b.cache.Set(oid, struct{}{}, int64(size))
	b.cache.Wait()
	return false
}

type freecacheBaseline struct{ cache *freecache.Cache }

func (b *freecacheBaseline) Access(oid, size int) bool {
	key := []byte(strconv.Itoa(oid))
	if _, err := b.cache.Get(key); err == nil {
		return true
	}
	_ = b.cache.Set(key, make([]byte, size), 0)
	return false
}
