package notify

import (
	"container/heap"

	"github.com/njoerd114/prayerrelay/internal/model"
)

// requestHeap is a min-heap of pending requests ordered by FireAt.
type requestHeap []model.NotificationRequest

func (h requestHeap) Len() int { return len(h) }
func (h requestHeap) Less(i, j int) bool {
	if h[i].FireAt.Equal(h[j].FireAt) {
		return h[i].ID < h[j].ID
	}
	return h[i].FireAt.Before(h[j].FireAt)
}
func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x any) {
	*h = append(*h, x.(model.NotificationRequest))
}

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// upsert adds req, replacing a pending request with the same ID.
func (h *requestHeap) upsert(req model.NotificationRequest) {
	for i, e := range *h {
		if e.ID == req.ID {
			(*h)[i] = req
			heap.Fix(h, i)
			return
		}
	}
	heap.Push(h, req)
}
