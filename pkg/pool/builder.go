package pool

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/projectdiscovery/gologger"

	"github.com/edgediscovery/cleanip/pkg/provider"
	"github.com/edgediscovery/cleanip/pkg/types"
	iputil "github.com/projectdiscovery/utils/ip"
)

// ErrPoolExhausted is returned when synthesis cannot find a free
// address: the prefix table and the seen set have become mutually
// exhaustive. It is the only builder failure visible to callers.
var ErrPoolExhausted = errors.New("address pool exhausted, retry generation")

const (
	// DefaultMaxCount bounds the per-pass requested count
	DefaultMaxCount = 50
	// DefaultMaxAttempts caps the synthesis collision-retry loop
	DefaultMaxAttempts = 10000

	// addresses per two-octet synthesis prefix (256 * 256)
	addressesPerPrefix = 65536
)

// Suggester obtains best-effort candidate addresses from an external
// source. Implementations may return malformed entries or duplicates;
// the builder filters them.
type Suggester interface {
	Suggest(ctx context.Context, count int, exclude []string) ([]string, error)
}

// Options contains the configuration options for a pool builder
type Options struct {
	// Count is the exact number of records each pass must produce
	Count int
	// MaxCount bounds Count (default DefaultMaxCount)
	MaxCount int
	// MaxAttempts caps synthesis retries (default DefaultMaxAttempts)
	MaxAttempts int
	// Prefixes overrides the synthesis prefix table (default: the
	// provider registry)
	Prefixes []string
	// Suggester supplies model candidates; nil means synthesis only
	Suggester Suggester
	// Rand overrides the randomness source, mainly for tests
	Rand *rand.Rand
	// PassID is stamped on every record produced by this builder
	PassID string
	// OnRecord is called once per accepted record, in order
	OnRecord func(record types.AddressRecord)
}

// Builder produces deduplicated pools of candidate address records
type Builder struct {
	options Options
	rng     *rand.Rand
}

// NewBuilder creates a pool builder after validating options
func NewBuilder(options Options) (*Builder, error) {
	if options.MaxCount <= 0 {
		options.MaxCount = DefaultMaxCount
	}
	if options.Count <= 0 || options.Count > options.MaxCount {
		return nil, fmt.Errorf("count must be between 1 and %d, got %d", options.MaxCount, options.Count)
	}
	if options.MaxAttempts <= 0 {
		options.MaxAttempts = DefaultMaxAttempts
	}
	if len(options.Prefixes) == 0 {
		options.Prefixes = provider.SynthesisPrefixes()
	}

	rng := options.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}

	return &Builder{options: options, rng: rng}, nil
}

// Build runs one generation pass: model suggestions first, synthetic
// padding after, exactly Count unique records on success. The seen set
// is updated with every returned address and remains untouched on
// failure.
func (b *Builder) Build(ctx context.Context, seen *SeenSet) ([]types.AddressRecord, error) {
	suggestions := b.fetchSuggestions(ctx, seen)

	inPass := make(map[string]struct{}, b.options.Count)
	records := make([]types.AddressRecord, 0, b.options.Count)

	// model candidates, in supplied order
	for _, raw := range suggestions {
		if len(records) == b.options.Count {
			break
		}
		address := strings.TrimSpace(raw)
		if !iputil.IsIPv4(address) {
			continue
		}
		if seen.Has(address) {
			continue
		}
		if _, ok := inPass[address]; ok {
			continue
		}
		inPass[address] = struct{}{}
		records = append(records, b.buildRecord(address, types.SourceModel))
	}

	// synthetic padding
	if len(records) < b.options.Count {
		needed := b.options.Count - len(records)
		if free := b.freeAddresses(seen, inPass); free < uint64(needed) {
			return nil, ErrPoolExhausted
		}

		attempts := 0
		for len(records) < b.options.Count {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if attempts >= b.options.MaxAttempts {
				return nil, ErrPoolExhausted
			}
			attempts++

			prefix := b.options.Prefixes[b.rng.IntN(len(b.options.Prefixes))]
			address := fmt.Sprintf("%s%d.%d", prefix, b.rng.IntN(256), b.rng.IntN(256))
			if seen.Has(address) {
				continue
			}
			if _, ok := inPass[address]; ok {
				continue
			}
			inPass[address] = struct{}{}
			records = append(records, b.buildRecord(address, types.SourceSynthetic))
		}
	}

	for _, record := range records {
		seen.Add(record.Address)
	}

	return records, nil
}

// fetchSuggestions asks the suggester for candidates. Any failure
// degrades to zero suggestions, never an error.
func (b *Builder) fetchSuggestions(ctx context.Context, seen *SeenSet) []string {
	if b.options.Suggester == nil {
		return nil
	}
	suggestions, err := b.options.Suggester.Suggest(ctx, b.options.Count, seen.Sorted())
	if err != nil {
		gologger.Warning().Msgf("suggestion call failed, falling back to synthesis: %v", err)
		return nil
	}
	return suggestions
}

func (b *Builder) buildRecord(address string, source types.RecordSource) types.AddressRecord {
	record := types.AddressRecord{
		Address:   address,
		LatencyMs: 20 + b.rng.IntN(151), // placeholder, uniform in [20,170]
		Provider:  provider.Classify(address),
		Status:    types.StatusAccepted,
		Source:    source,
		PassID:    b.options.PassID,
	}
	record.SetTimestamp(time.Now().UTC())

	if b.options.OnRecord != nil {
		b.options.OnRecord(record)
	}
	return record
}

// freeAddresses returns how many synthesizable addresses remain, i.e.
// prefix-table capacity minus the part of the seen set and in-pass
// selection already covering it
func (b *Builder) freeAddresses(seen *SeenSet, inPass map[string]struct{}) uint64 {
	capacity := uint64(len(b.options.Prefixes)) * addressesPerPrefix

	var covered uint64
	for address := range seen.addresses {
		if b.matchesPrefix(address) {
			covered++
		}
	}
	for address := range inPass {
		if !seen.Has(address) && b.matchesPrefix(address) {
			covered++
		}
	}

	if covered >= capacity {
		return 0
	}
	return capacity - covered
}

func (b *Builder) matchesPrefix(address string) bool {
	for _, prefix := range b.options.Prefixes {
		if strings.HasPrefix(address, prefix) {
			return true
		}
	}
	return false
}
