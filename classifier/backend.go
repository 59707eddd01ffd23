package classifier

import (
	"errors"
	"math"
)

var errNoTrainingRows = errors.New("classifier: no training rows")

// Backend is the classifier's black-box collaborator (§4.7): a binary
// classifier with train(X,y) and predict(X)->[0,1] operations. No
// gradient-boosting library exists anywhere in the retrieval pack (every
// example repo's go.mod was checked), so this file provides a small,
// genuinely-trained gradient-boosted tree ensemble in its place — the
// same role LightGBM plays in original_source/HR-Cache/hr/model.cpp,
// scoped down to what the standard library can do without an external
// numerical computing dependency. See DESIGN.md for the justification.
type Backend interface {
	Train(features [][]float64, labels []float64, hp Hyperparams) (Model, error)
	Predict(m Model, features [][]float64) ([]float64, error)
}

// Hyperparams mirrors the fixed hyperparameters spec.md §4.5 pins:
// binary objective, learning rate 0.1, 32 leaves, max depth 50, with the
// boosting round count supplied at construction.
type Hyperparams struct {
	LearningRate float64
	NumLeaves    int
	MaxDepth     int
	Rounds       int
}

// Model is an opaque trained handle: an ensemble of regression trees
// boosted against the logistic log-loss, plus the initial log-odds bias.
type Model struct {
	bias  float64
	trees []tree
	lr    float64
}

// tree is a depth-limited binary regression tree, recursively grown by
// greedy variance-reduction splits. Splitting stops once NumLeaves leaves
// exist, but every branch still pending at that point becomes one more
// leaf, so the final leaf count can exceed NumLeaves.
type tree struct {
	featureIdx  int
	threshold   float64
	left, right *tree
	value       float64 // only meaningful on leaves (left == right == nil)
	leaf        bool
}

// GBTBackend trains and predicts using the tree ensemble above.
type GBTBackend struct{}

func (GBTBackend) Train(features [][]float64, labels []float64, hp Hyperparams) (Model, error) {
	n := len(features)
	if n == 0 {
		return Model{}, errNoTrainingRows
	}
	if hp.Rounds <= 0 {
		hp.Rounds = 1
	}
	if hp.MaxDepth <= 0 {
		hp.MaxDepth = 6
	}
	if hp.NumLeaves <= 0 {
		hp.NumLeaves = 32
	}
	lr := hp.LearningRate
	if lr <= 0 {
		lr = 0.1
	}

	mean := 0.0
	for _, l := range labels {
		mean += l
	}
	mean /= float64(n)
	bias := logit(clamp01(mean))

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = bias
	}

	m := Model{bias: bias, lr: lr}
	for round := 0; round < hp.Rounds; round++ {
		residuals := make([]float64, n)
		for i, l := range labels {
			residuals[i] = l - sigmoid(scores[i])
		}

		t := growTree(features, residuals, hp.MaxDepth, hp.NumLeaves)
		if t == nil {
			break
		}
		for i, x := range features {
			scores[i] += lr * t.predict(x)
		}
		m.trees = append(m.trees, *t)
	}

	return m, nil
}

func (GBTBackend) Predict(m Model, features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i, x := range features {
		score := m.bias
		for _, t := range m.trees {
			score += m.lr * t.predict(x)
		}
		out[i] = sigmoid(score)
	}
	return out, nil
}

// growTree greedily splits on the feature/threshold pair that most
// reduces the sum of squared residuals, no longer splitting at maxDepth
// or once the running leaf count has reached maxLeaves (branches still
// pending then each add one leaf beyond it).
func growTree(features [][]float64, residuals []float64, maxDepth, maxLeaves int) *tree {
	idx := make([]int, len(features))
	for i := range idx {
		idx[i] = i
	}
	leaves := 0
	return buildNode(features, residuals, idx, maxDepth, maxLeaves, &leaves)
}

func buildNode(features [][]float64, residuals []float64, idx []int, depth, maxLeaves int, leaves *int) *tree {
	if len(idx) == 0 {
		return nil
	}
	if depth <= 0 || *leaves >= maxLeaves || len(idx) < 2 {
		*leaves++
		return &tree{leaf: true, value: meanOf(residuals, idx)}
	}

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	parentSSE := sse(residuals, idx)

	numFeatures := 0
	if len(features) > 0 {
		numFeatures = len(features[0])
	}
	for f := 0; f < numFeatures; f++ {
		thresholds := candidateThresholds(features, idx, f)
		for _, thr := range thresholds {
			var left, right []int
			for _, i := range idx {
				if features[i][f] <= thr {
					left = append(left, i)
				} else {
					right = append(right, i)
				}
			}
			if len(left) == 0 || len(right) == 0 {
				continue
			}
			gain := parentSSE - sse(residuals, left) - sse(residuals, right)
			if gain > bestGain {
				bestGain, bestFeature, bestThreshold = gain, f, thr
			}
		}
	}

	if bestFeature < 0 {
		*leaves++
		return &tree{leaf: true, value: meanOf(residuals, idx)}
	}

	var left, right []int
	for _, i := range idx {
		if features[i][bestFeature] <= bestThreshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &tree{
		featureIdx: bestFeature,
		threshold:  bestThreshold,
		left:       buildNode(features, residuals, left, depth-1, maxLeaves, leaves),
		right:      buildNode(features, residuals, right, depth-1, maxLeaves, leaves),
	}
}

// candidateThresholds samples at most 8 split points from the distinct
// sorted values idx takes on feature f, keeping the split search at each
// node to a handful of candidates instead of scanning every distinct
// value on large windows.
func candidateThresholds(features [][]float64, idx []int, f int) []float64 {
	values := make([]float64, len(idx))
	for i, j := range idx {
		values[i] = features[j][f]
	}
	sortFloats(values)

	const maxCandidates = 8
	step := (len(values) + maxCandidates - 1) / maxCandidates
	if step < 1 {
		step = 1
	}
	var out []float64
	for i := step; i < len(values); i += step {
		out = append(out, values[i])
	}
	return out
}

func (t *tree) predict(x []float64) float64 {
	if t.leaf {
		return t.value
	}
	if x[t.featureIdx] <= t.threshold {
		return t.left.predict(x)
	}
	return t.right.predict(x)
}

func meanOf(values []float64, idx []int) float64 {
	var sum float64
	for _, i := range idx {
		sum += values[i]
	}
	return sum / float64(len(idx))
}

func sse(values []float64, idx []int) float64 {
	mean := meanOf(values, idx)
	var sum float64
	for _, i := range idx {
		diff := values[i] - mean
		sum += diff * diff
	}
	return sum
}

func sortFloats(v []float64) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j-1] > v[j]; j-- {
			v[j-1], v[j] = v[j], v[j-1]
		}
	}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func logit(p float64) float64 { return math.Log(p / (1 - p)) }

func clamp01(p float64) float64 {
	const eps = 1e-6
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}
