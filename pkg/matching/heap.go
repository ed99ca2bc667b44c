package matching

// orderHeap implements heap.Interface over the entries of one side.
type orderHeap struct {
	entries []*entry
	less    func(a, b *entry) bool
}

func newOrderHeap(less func(a, b *entry) bool) *orderHeap {
	return &orderHeap{
		entries: []*entry{},
		less:    less,
	}
}

func (h orderHeap) Len() int {
	return len(h.entries)
}

func (h orderHeap) Less(i, j int) bool {
	return h.less(h.entries[i], h.entries[j])
}

func (h orderHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
}

func (h *orderHeap) Push(x any) {
	h.entries = append(h.entries, x.(*entry))
}

func (h *orderHeap) Pop() any {
	n := len(h.entries)
	e := h.entries[n-1]
	h.entries[n-1] = nil
	h.entries = h.entries[:n-1]
	return e
}
