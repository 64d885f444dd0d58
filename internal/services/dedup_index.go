package services

import "budget/internal/core"

// DedupIndex is the set of obligations already recorded for one month. It is
// built from a single batched query at the start of a month run and is only
// read afterwards, so concurrent lookups need no locking.
type DedupIndex struct {
	keys map[string]struct{}
}

func NewDedupIndex(keys []core.RecurringKey) *DedupIndex {
	idx := &DedupIndex{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		idx.keys[k.String()] = struct{}{}
	}
	return idx
}

// Contains reports whether (sourceType, sourceID) was already recorded.
func (d *DedupIndex) Contains(sourceType core.SourceType, sourceID string) bool {
	_, ok := d.keys[core.RecurringKey{SourceType: sourceType, SourceID: sourceID}.String()]
	return ok
}

func (d *DedupIndex) Len() int {
	return len(d.keys)
}
