package classifier

import (
	"math/rand"
	"testing"

	"github.com/codeGROOVE-dev/hrcache/window"
)

func TestCapacityClamping(t *testing.T) {
	if got := Capacity(100, 3); got != minDataSetCount {
		t.Fatalf("Capacity(100,3) = %d, want %d (clamped to minimum)", got, minDataSetCount)
	}
	if got := Capacity(1<<40, 3); got != maxDataSetCount {
		t.Fatalf("Capacity(huge,3) = %d, want %d (clamped to maximum)", got, maxDataSetCount)
	}
	// 8 rows * (3+1)*8 bytes = 256 bytes, well under the minimum clamp.
	if got := Capacity(256, 3); got != minDataSetCount {
		t.Fatalf("Capacity(256,3) = %d, want clamp to minimum %d", got, minDataSetCount)
	}
}

func requestWith(features []float64, label int) *window.Request {
	return &window.Request{Features: features, Label: label}
}

func TestUnavailableBeforeFirstTrain(t *testing.T) {
	c := New(Config{Capacity: 4, FeaturesLength: 2})
	if c.Available() {
		t.Fatal("a freshly constructed classifier must report unavailable")
	}
	batch := []*window.Request{requestWith([]float64{1, 2}, 0)}
	if err := c.Predict(batch); err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	if batch[0].AdmitProbability != 0 {
		t.Fatalf("AdmitProbability = %v, want 0 when no model is available", batch[0].AdmitProbability)
	}
}

func TestTrainPublishesAvailableModel(t *testing.T) {
	c := New(Config{Capacity: 16, FeaturesLength: 2, LearningRate: 0.1, NumLeaves: 8, MaxDepth: 3, MaxBoostRounds: 5})
	rng := rand.New(rand.NewSource(1))

	var reqs []*window.Request
	for i := 0; i < 10; i++ {
		label := 0
		if i%2 == 0 {
			label = 1
		}
		reqs = append(reqs, requestWith([]float64{float64(i), float64(i * 2)}, label))
	}

	c.Train(reqs, rng, nil)
	if !c.Available() {
		t.Fatal("classifier should be available after a successful Train call")
	}

	batch := []*window.Request{requestWith([]float64{4, 8}, 0)}
	if err := c.Predict(batch); err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	if batch[0].AdmitProbability <= 0 || batch[0].AdmitProbability >= 1 {
		t.Fatalf("AdmitProbability = %v, want a value strictly in (0,1)", batch[0].AdmitProbability)
	}
}

func TestAppendWrapsAndMarksFull(t *testing.T) {
	c := New(Config{Capacity: 4, FeaturesLength: 1})
	rng := rand.New(rand.NewSource(2))

	var first []*window.Request
	for i := 0; i < 3; i++ {
		first = append(first, requestWith([]float64{float64(i)}, i%2))
	}
	c.appendLocked(first, rng)
	if c.full {
		t.Fatal("buffer should not be full after writing only 3 of 4 rows")
	}
	if c.rowCount != 3 {
		t.Fatalf("rowCount = %d, want 3", c.rowCount)
	}

	var second []*window.Request
	for i := 3; i < 7; i++ {
		second = append(second, requestWith([]float64{float64(i)}, i%2))
	}
	c.appendLocked(second, rng)
	if !c.full {
		t.Fatal("buffer should be full after wrapping past capacity")
	}
	if c.rowCount != 3 {
		t.Fatalf("rowCount after wrap = %d, want (3+4)%%4=3", c.rowCount)
	}
}

func TestOneTimeTrainingOnlyTrainsOnce(t *testing.T) {
	c := New(Config{Capacity: 16, FeaturesLength: 1, OneTimeTrain: true, MaxBoostRounds: 3})
	rng := rand.New(rand.NewSource(3))

	mkReqs := func(n int) []*window.Request {
		var reqs []*window.Request
		for i := 0; i < n; i++ {
			reqs = append(reqs, requestWith([]float64{float64(i)}, i%2))
		}
		return reqs
	}

	c.Train(mkReqs(5), rng, nil)
	if !c.Available() {
		t.Fatal("first Train call should publish a model")
	}
	firstBias := c.current.bias

	// A second window's worth of training data should still be appended
	// into the ring (rowCount must advance) but must not retrain the model.
	c.Train(mkReqs(5), rng, nil)
	if c.current.bias != firstBias {
		t.Fatalf("model bias changed after a second Train call with one_time_training=true: %v != %v", c.current.bias, firstBias)
	}
	if c.rowCount != 10 {
		t.Fatalf("rowCount = %d, want 10 (rows still appended even though training was skipped)", c.rowCount)
	}
}
