// Package queue provides a score-ordered priority queue used for top-k
// candidate selection during search.
package queue

import (
	"container/heap"

	"github.com/hupe1980/colgo/vectorstore"
)

// Compile time check to ensure PriorityQueue satisfies the heap interface.
var _ heap.Interface = (*PriorityQueue)(nil)

// Item represents a scored candidate page in the priority queue.
type Item struct {
	ID    vectorstore.PageID // ID is the candidate page.
	Score float32            // Score is the priority of the item in the queue.
	Index int                // Index is maintained by the heap.Interface methods.
}

// PriorityQueue implements heap.Interface as a min-heap by score, so the worst
// surviving candidate is always on top. Equal scores order the larger page id
// first, which makes eviction deterministic: smaller page ids win ties.
type PriorityQueue struct {
	Items []*Item
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue) Len() int { return len(pq.Items) }

// Less reports whether the element with index i should sort before the element with index j.
func (pq *PriorityQueue) Less(i, j int) bool {
	if pq.Items[i].Score != pq.Items[j].Score {
		return pq.Items[i].Score < pq.Items[j].Score
	}
	return pq.Items[i].ID.Compare(pq.Items[j].ID) > 0
}

// Swap swaps the elements with indexes i and j.
func (pq *PriorityQueue) Swap(i, j int) {
	pq.Items[i], pq.Items[j] = pq.Items[j], pq.Items[i]
	pq.Items[i].Index, pq.Items[j].Index = i, j
}

// Push adds x to the priority queue.
func (pq *PriorityQueue) Push(x any) {
	item, _ := x.(*Item)
	item.Index = len(pq.Items)
	pq.Items = append(pq.Items, item)
}

// Pop removes and returns the top element from the priority queue.
func (pq *PriorityQueue) Pop() any {
	if len(pq.Items) == 0 {
		return nil
	}

	old := pq.Items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // Avoid memory leak
	item.Index = -1
	pq.Items = old[:n-1]

	return item
}

// TopK selects the k best-scoring items, descending by score with ties broken
// by ascending page id. It runs in O(n log k).
func TopK(items []Item, k int) []Item {
	if k <= 0 {
		return nil
	}

	pq := &PriorityQueue{}
	heap.Init(pq)
	for i := range items {
		it := items[i]
		heap.Push(pq, &it)
		if pq.Len() > k {
			heap.Pop(pq)
		}
	}

	out := make([]Item, pq.Len())
	for i := pq.Len() - 1; i >= 0; i-- {
		it, _ := heap.Pop(pq).(*Item)
		out[i] = *it
	}
	return out
}
