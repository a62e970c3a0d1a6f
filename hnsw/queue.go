package hnsw

import "container/heap"

// queueItem is a graph node paired with its distance from a query.
type queueItem struct {
	id       uint32
	distance float32
}

// priorityQueue orders queue items by distance. With max set it behaves as
// a max-heap (farthest item on top), otherwise as a min-heap.
type priorityQueue struct {
	max   bool
	items []queueItem
}

var _ heap.Interface = (*priorityQueue)(nil)

func newMinQueue() *priorityQueue { return &priorityQueue{} }

func newMaxQueue() *priorityQueue { return &priorityQueue{max: true} }

func (pq *priorityQueue) Len() int { return len(pq.items) }

func (pq *priorityQueue) Less(i, j int) bool {
	if pq.max {
		return pq.items[i].distance > pq.items[j].distance
	}
	return pq.items[i].distance < pq.items[j].distance
}

func (pq *priorityQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
}

func (pq *priorityQueue) Push(x any) {
	pq.items = append(pq.items, x.(queueItem))
}

func (pq *priorityQueue) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	pq.items = old[:n-1]
	return item
}

// top returns the root item without removing it.
func (pq *priorityQueue) top() queueItem { return pq.items[0] }
