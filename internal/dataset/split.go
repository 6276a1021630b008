package dataset

import (
	"fmt"
	"math"
	"math/rand"
)

// SplitRatios are the train/val/test fractions.
type SplitRatios struct {
	Train float64
	Val   float64
	Test  float64
}

// DefaultSplitRatios is the 80/10/10 split the experiments use.
var DefaultSplitRatios = SplitRatios{Train: 0.8, Val: 0.1, Test: 0.1}

// Validate checks the ratios are positive and sum to 1.
func (r SplitRatios) Validate() error {
	if r.Train <= 0 || r.Val <= 0 || r.Test <= 0 {
		return fmt.Errorf("split ratios must be positive, got %.2f/%.2f/%.2f", r.Train, r.Val, r.Test)
	}
	if sum := r.Train + r.Val + r.Test; math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("split ratios must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// StratifiedSplit partitions rows into train/val/test while preserving
// the label distribution: positives and negatives are shuffled and cut
// independently, then each split is shuffled again so the labels do
// not arrive in blocks. The same seed always yields the same split.
func StratifiedSplit(rows []Record, seed int64, ratios SplitRatios) (train, val, test []Record) {
	rng := rand.New(rand.NewSource(seed))

	var pos, neg []Record
	for _, r := range rows {
		if r.Target == 1 {
			pos = append(pos, r)
		} else {
			neg = append(neg, r)
		}
	}
	shuffle(rng, pos)
	shuffle(rng, neg)

	cut := func(b []Record) (tr, va, te []Record) {
		n := len(b)
		nTr := int(float64(n) * ratios.Train)
		nVa := int(float64(n) * ratios.Val)
		return b[:nTr], b[nTr : nTr+nVa], b[nTr+nVa:]
	}

	pTr, pVa, pTe := cut(pos)
	nTr, nVa, nTe := cut(neg)

	train = append(append([]Record{}, pTr...), nTr...)
	val = append(append([]Record{}, pVa...), nVa...)
	test = append(append([]Record{}, pTe...), nTe...)
	shuffle(rng, train)
	shuffle(rng, val)
	shuffle(rng, test)
	return train, val, test
}

func shuffle(rng *rand.Rand, b []Record) {
	rng.Shuffle(len(b), func(i, j int) { b[i], b[j] = b[j], b[i] })
}
