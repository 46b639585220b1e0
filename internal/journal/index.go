package journal

import (
	"cmp"
	"slices"
	"sync"
)

// journalIndex tracks intents and which of them have been resolved, either
// committed (applied) or aborted (never applied).
type journalIndex struct {
	mu        sync.RWMutex
	intents   map[int64]Entry
	committed map[int64]bool
	aborted   map[int64]bool
}

func newJournalIndex() *journalIndex {
	return &journalIndex{
		intents:   make(map[int64]Entry),
		committed: make(map[int64]bool),
		aborted:   make(map[int64]bool),
	}
}

// AddIntent records a new intent as pending.
func (idx *journalIndex) AddIntent(entry Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.intents[entry.Sequence] = entry
}

// MarkCommitted marks an intent as applied. Commits for unknown sequences are kept
// so an intent replayed later in a damaged file is still treated as done.
func (idx *journalIndex) MarkCommitted(sequence int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.committed[sequence] = true
}

// MarkAborted marks an intent as abandoned before any collection file changed.
func (idx *journalIndex) MarkAborted(sequence int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.aborted[sequence] = true
}

func (idx *journalIndex) resolved(sequence int64) bool {
	return idx.committed[sequence] || idx.aborted[sequence]
}

// IsPending reports whether the sequence is an intent without a commit or abort.
func (idx *journalIndex) IsPending(sequence int64) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.intents[sequence]
	return ok && !idx.resolved(sequence)
}

// Pending returns unresolved intents ordered by sequence.
func (idx *journalIndex) Pending() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var pending []Entry
	for seq, entry := range idx.intents {
		if !idx.resolved(seq) {
			pending = append(pending, entry)
		}
	}

	slices.SortFunc(pending, func(a, b Entry) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})

	return pending
}

// Count returns the number of intents.
func (idx *journalIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.intents)
}

// CountPending returns the number of unresolved intents.
func (idx *journalIndex) CountPending() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	count := 0
	for seq := range idx.intents {
		if !idx.resolved(seq) {
			count++
		}
	}
	return count
}
