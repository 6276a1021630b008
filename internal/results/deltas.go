package results

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// BaselineVariant is the train variant used as the reference point for
// delta computation: the model trained on the unaugmented dataset.
const BaselineVariant = "only"

// Delta compares one augmented variant's true-positive set against the
// baseline for the same dataset.
type Delta struct {
	Dataset         string
	BaselineVariant string
	CompareVariant  string
	BaselineCount   int
	CompareCount    int
	IntersectCount  int
	NewCount        int
	LostCount       int
	NewIndices      []int
	LostIndices     []int
	IntersectIdx    []int
}

// ComputeDeltas groups summary rows by dataset and, for every non-
// baseline variant, reports which TPs were gained and lost relative to
// the baseline. Datasets without a baseline row contribute nothing; if
// no dataset has one, that is an error.
func ComputeDeltas(rows []Summary) ([]Delta, error) {
	byDataset := map[string][]Summary{}
	var datasets []string
	for _, r := range rows {
		if r.Dataset == "" {
			continue
		}
		if _, seen := byDataset[r.Dataset]; !seen {
			datasets = append(datasets, r.Dataset)
		}
		byDataset[r.Dataset] = append(byDataset[r.Dataset], r)
	}
	sort.Strings(datasets)

	var deltas []Delta
	for _, ds := range datasets {
		group := byDataset[ds]

		var baseline *Summary
		for i := range group {
			if group[i].TrainVariant == BaselineVariant {
				baseline = &group[i]
				break
			}
		}
		if baseline == nil {
			continue
		}

		baseSet, err := ParseIndices(baseline.TPIndices)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", ds, BaselineVariant, err)
		}

		for _, r := range group {
			if r.TrainVariant == BaselineVariant {
				continue
			}
			cmpSet, err := ParseIndices(r.TPIndices)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", ds, r.TrainVariant, err)
			}

			var inter, gained, lost []int
			for n := range cmpSet {
				if _, ok := baseSet[n]; ok {
					inter = append(inter, n)
				} else {
					gained = append(gained, n)
				}
			}
			for n := range baseSet {
				if _, ok := cmpSet[n]; !ok {
					lost = append(lost, n)
				}
			}
			sort.Ints(inter)
			sort.Ints(gained)
			sort.Ints(lost)

			deltas = append(deltas, Delta{
				Dataset:         ds,
				BaselineVariant: BaselineVariant,
				CompareVariant:  r.TrainVariant,
				BaselineCount:   len(baseSet),
				CompareCount:    len(cmpSet),
				IntersectCount:  len(inter),
				NewCount:        len(gained),
				LostCount:       len(lost),
				NewIndices:      gained,
				LostIndices:     lost,
				IntersectIdx:    inter,
			})
		}
	}

	if len(deltas) == 0 {
		return nil, fmt.Errorf("no deltas computed: no %q baseline found in any dataset", BaselineVariant)
	}
	return deltas, nil
}

// WriteDeltasCSV writes the delta table.
func WriteDeltasCSV(path string, deltas []Delta) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"dataset", "baseline_variant", "compare_variant",
		"baseline_tp_count", "compare_tp_count", "intersection_tp_count",
		"new_tp_count", "lost_tp_count",
		"new_tp_indices", "lost_tp_indices", "intersection_tp_indices",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, d := range deltas {
		row := []string{
			d.Dataset, d.BaselineVariant, d.CompareVariant,
			strconv.Itoa(d.BaselineCount), strconv.Itoa(d.CompareCount), strconv.Itoa(d.IntersectCount),
			strconv.Itoa(d.NewCount), strconv.Itoa(d.LostCount),
			FormatIndices(d.NewIndices), FormatIndices(d.LostIndices), FormatIndices(d.IntersectIdx),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
