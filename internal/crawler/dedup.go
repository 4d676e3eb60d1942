package crawler

import (
	"github.com/nao1215/corpuscrawl/internal/corpus"
)

// DedupStore tracks URLs that must not be processed again.
//
// persisted holds URLs found in the corpus at run start and URLs saved
// during the run. It only grows. visited holds every URL attempted during
// the run, whether or not the attempt succeeded.
type DedupStore struct {
	// persisted are URLs present in the corpus.
	persisted map[string]struct{}

	// loaded is the number of URLs read from the corpus at start.
	loaded int

	// visited are URLs attempted in this run.
	visited map[string]struct{}
}

// NewDedupStore creates an empty store.
func NewDedupStore() *DedupStore {
	return &DedupStore{
		persisted: make(map[string]struct{}),
		visited:   make(map[string]struct{}),
	}
}

// Load adds every URL recorded in the corpus file at path to the
// persisted set. URLs are normalized so hand-edited corpus lines with a
// fragment or trailing slash still match. Malformed lines are skipped and a
// missing file adds nothing. It returns the number of URLs added.
func (d *DedupStore) Load(path string) (int, error) {
	urls, err := corpus.ReadURLs(path)
	if err != nil {
		return 0, err
	}

	added := 0
	for raw := range urls {
		u := Normalize(raw)
		if _, ok := d.persisted[u]; ok {
			continue
		}
		d.persisted[u] = struct{}{}
		added++
	}
	d.loaded += added
	return added, nil
}

// Contains reports whether the URL was persisted or visited.
func (d *DedupStore) Contains(u string) bool {
	if _, ok := d.persisted[u]; ok {
		return true
	}
	_, ok := d.visited[u]
	return ok
}

// IsPersisted reports whether the URL is in the corpus.
func (d *DedupStore) IsPersisted(u string) bool {
	_, ok := d.persisted[u]
	return ok
}

// MarkVisited records an attempt on the URL. It returns false when the URL
// was already visited in this run.
func (d *DedupStore) MarkVisited(u string) bool {
	if _, ok := d.visited[u]; ok {
		return false
	}
	d.visited[u] = struct{}{}
	return true
}

// MarkSaved records that the URL was written to the corpus.
func (d *DedupStore) MarkSaved(u string) {
	d.persisted[u] = struct{}{}
}

// Loaded returns the number of URLs read from the corpus by Load.
func (d *DedupStore) Loaded() int {
	return d.loaded
}

// VisitedCount returns the number of URLs attempted in this run.
func (d *DedupStore) VisitedCount() int {
	return len(d.visited)
}
