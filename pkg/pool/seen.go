package pool

import "sort"

// SeenSet accumulates every address returned across generation passes
// for the lifetime of a session. It never shrinks and is used only for
// deduplication. The set is single-owner: only the pass that just
// completed updates it, so no locking is needed.
type SeenSet struct {
	addresses map[string]struct{}
}

// NewSeenSet creates an empty seen set
func NewSeenSet() *SeenSet {
	return &SeenSet{addresses: make(map[string]struct{})}
}

// Has reports whether the address was returned by an earlier pass
func (s *SeenSet) Has(address string) bool {
	_, ok := s.addresses[address]
	return ok
}

// Add records an address as seen
func (s *SeenSet) Add(address string) {
	s.addresses[address] = struct{}{}
}

// Len returns the number of accumulated addresses
func (s *SeenSet) Len() int {
	return len(s.addresses)
}

// Sorted returns the accumulated addresses in lexicographic order,
// suitable for a stable exclusion list
func (s *SeenSet) Sorted() []string {
	out := make([]string, 0, len(s.addresses))
	for addr := range s.addresses {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}
