/*
PURPOSE:
  Collects ResultRecords from the device workers and restores canonical
  expansion order.

REQUIREMENTS:
  User-specified:
  - Append-only; never drops a record.
  - Final order is the Matrix Expander's emission order regardless of
    device completion timing.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine/driver.go

ERROR HANDLING:
  - None; pure collection.

IMPLEMENTATION RULES:
  - Mutex-guarded Add; Records() sorts by spec index and returns a copy.

USAGE:
  agg := newAggregator()
  agg.Add(rec)
  out := agg.Records()

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - None.
*/

package engine

import (
	"sort"
	"sync"

	"github.com/edge-bench/edge-runner/internal/model"
)

type aggregator struct {
	mu      sync.Mutex
	records []model.ResultRecord
}

func newAggregator() *aggregator {
	return &aggregator{}
}

func (a *aggregator) Add(rec model.ResultRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
}

// Records returns the collected records sorted by expansion index.
func (a *aggregator) Records() []model.ResultRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.ResultRecord, len(a.records))
	copy(out, a.records)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Spec.Index < out[j].Spec.Index
	})
	return out
}
