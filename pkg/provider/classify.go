package provider

import (
	"strings"

	"github.com/projectdiscovery/gcache"
)

// classification results are memoized since repeat passes keep
// re-labeling addresses from the same handful of ranges
var classifyCache = gcache.New[string, string](4096).
	LRU().
	Build()

// Classify returns the CDN operator label for an address based on its
// numeric prefix. Addresses matching no known prefix are labeled with
// DefaultProvider. The rule is a pure function of the address string.
func Classify(address string) string {
	if label, err := classifyCache.Get(address); err == nil {
		return label
	}

	label := DefaultProvider
	for _, n := range defaultNetworks {
		if strings.HasPrefix(address, n.Prefix) {
			label = n.Provider
			break
		}
	}

	_ = classifyCache.Set(address, label)
	return label
}
