// Package queue implements the bounded top-k collector used by both
// retrieval branches of the store.
package queue

import "sort"

// Item is a scored row candidate.
type Item struct {
	Row   uint32
	Score float32
}

// TopK keeps the k best items by score using a bounded min-heap (the worst
// surviving candidate sits at the root). Score ties at the boundary evict
// the larger row, so the surviving set is deterministic regardless of push
// order.
type TopK struct {
	k     int
	items []Item
}

// NewTopK returns a collector that retains at most k items.
func NewTopK(k int) *TopK {
	if k < 1 {
		k = 1
	}
	return &TopK{
		k:     k,
		items: make([]Item, 0, k),
	}
}

// worse reports whether a ranks below b.
func worse(a, b Item) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Row > b.Row
}

// Push offers a candidate. It is kept only if fewer than k items are held or
// it ranks above the current worst.
func (q *TopK) Push(row uint32, score float32) {
	item := Item{Row: row, Score: score}
	if len(q.items) < q.k {
		q.items = append(q.items, item)
		q.siftUp(len(q.items) - 1)
		return
	}
	if !worse(q.items[0], item) {
		return
	}
	q.items[0] = item
	q.siftDown(0)
}

// Len returns the number of held items.
func (q *TopK) Len() int { return len(q.items) }

// Threshold returns the worst currently-held item. The second return is
// false while the collector is empty.
func (q *TopK) Threshold() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Sorted drains the collector and returns items ordered best-first
// (descending score, ascending row on ties).
func (q *TopK) Sorted() []Item {
	out := q.items
	q.items = nil
	sort.Slice(out, func(i, j int) bool {
		return worse(out[j], out[i])
	})
	return out
}

func (q *TopK) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !worse(q.items[i], q.items[p]) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *TopK) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		least := l
		if r := l + 1; r < n && worse(q.items[r], q.items[l]) {
			least = r
		}
		if !worse(q.items[least], q.items[i]) {
			return
		}
		q.items[i], q.items[least] = q.items[least], q.items[i]
		i = least
	}
}
