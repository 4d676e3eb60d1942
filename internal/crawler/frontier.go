package crawler

// FrontierEntry is one unit of pending work.
type FrontierEntry struct {
	// URL is the normalized URL to process.
	URL string

	// Depth is the number of link hops from a seed.
	Depth int
}

// Frontier is the FIFO queue driving breadth-first traversal.
// A URL is enqueued at most once per run; later pushes of the same URL are
// ignored, which keeps the first (shallowest) depth.
type Frontier struct {
	// entries holds queued entries; entries[head:] are pending.
	entries []FrontierEntry

	// head is the index of the next entry to pop.
	head int

	// seen holds every URL ever pushed.
	seen map[string]struct{}
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		entries: make([]FrontierEntry, 0),
		seen:    make(map[string]struct{}),
	}
}

// Push appends an entry. It returns false if the URL was pushed before.
func (f *Frontier) Push(entry FrontierEntry) bool {
	if _, ok := f.seen[entry.URL]; ok {
		return false
	}
	f.seen[entry.URL] = struct{}{}
	f.entries = append(f.entries, entry)
	return true
}

// Pop removes and returns the oldest entry.
func (f *Frontier) Pop() (FrontierEntry, bool) {
	if f.head >= len(f.entries) {
		return FrontierEntry{}, false
	}
	entry := f.entries[f.head]
	f.entries[f.head] = FrontierEntry{}
	f.head++

	// Reclaim the consumed prefix once it dominates the slice.
	if f.head > 1024 && f.head*2 > len(f.entries) {
		f.entries = append([]FrontierEntry(nil), f.entries[f.head:]...)
		f.head = 0
	}
	return entry, true
}

// Len returns the number of pending entries.
func (f *Frontier) Len() int {
	return len(f.entries) - f.head
}

// Pending returns a copy of the pending entries in queue order.
func (f *Frontier) Pending() []FrontierEntry {
	return append([]FrontierEntry(nil), f.entries[f.head:]...)
}
