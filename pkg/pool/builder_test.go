package pool

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/edgediscovery/cleanip/pkg/types"
)

// stubSuggester returns a fixed suggestion list or error
type stubSuggester struct {
	list []string
	err  error
}

func (s *stubSuggester) Suggest(_ context.Context, _ int, _ []string) ([]string, error) {
	return s.list, s.err
}

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestBuildExactCount(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		suggester Suggester
	}{
		{
			name:      "synthesis only",
			count:     10,
			suggester: nil,
		},
		{
			name:      "single count",
			count:     1,
			suggester: nil,
		},
		{
			name:      "max count",
			count:     DefaultMaxCount,
			suggester: nil,
		},
		{
			name:      "with model suggestions",
			count:     10,
			suggester: &stubSuggester{list: []string{"172.64.1.1", "151.101.0.1"}},
		},
		{
			name:      "failing suggester degrades to synthesis",
			count:     5,
			suggester: &stubSuggester{err: errors.New("upstream unavailable")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder, err := NewBuilder(Options{
				Count:     tt.count,
				Suggester: tt.suggester,
				Rand:      testRand(),
			})
			if err != nil {
				t.Fatalf("NewBuilder() error = %v", err)
			}

			records, err := builder.Build(context.Background(), NewSeenSet())
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if len(records) != tt.count {
				t.Errorf("Build() returned %d records, want %d", len(records), tt.count)
			}

			unique := make(map[string]struct{})
			for _, r := range records {
				if _, ok := unique[r.Address]; ok {
					t.Errorf("Duplicate address in pass: %s", r.Address)
				}
				unique[r.Address] = struct{}{}

				if r.Status != types.StatusAccepted {
					t.Errorf("Record %s status = %s, want accepted", r.Address, r.Status)
				}
				if r.LatencyMs < 20 || r.LatencyMs > 170 {
					t.Errorf("Record %s latency = %d, want within [20,170]", r.Address, r.LatencyMs)
				}
				if r.Provider == "" {
					t.Errorf("Record %s has no provider label", r.Address)
				}
			}
		})
	}
}

func TestNewBuilderValidation(t *testing.T) {
	tests := []struct {
		name    string
		options Options
		wantErr bool
	}{
		{
			name:    "zero count",
			options: Options{Count: 0},
			wantErr: true,
		},
		{
			name:    "negative count",
			options: Options{Count: -3},
			wantErr: true,
		},
		{
			name:    "count above max",
			options: Options{Count: DefaultMaxCount + 1},
			wantErr: true,
		},
		{
			name:    "valid count",
			options: Options{Count: 10},
			wantErr: false,
		},
		{
			name:    "custom max allows larger count",
			options: Options{Count: 100, MaxCount: 200},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder(tt.options)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewBuilder() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildFiltersMalformedAndDuplicateSuggestions(t *testing.T) {
	// count=5, empty seen, suggestions with a duplicate and malformed
	// entries: the valid address appears exactly once plus 4 synthetic
	builder, err := NewBuilder(Options{
		Count:     5,
		Suggester: &stubSuggester{list: []string{"172.64.1.1", "172.64.1.1", "bad", ""}},
		Rand:      testRand(),
	})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}

	records, err := builder.Build(context.Background(), NewSeenSet())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("Build() returned %d records, want 5", len(records))
	}

	var modelCount, syntheticCount int
	seenAddrs := make(map[string]struct{})
	for _, r := range records {
		if _, ok := seenAddrs[r.Address]; ok {
			t.Errorf("Duplicate address: %s", r.Address)
		}
		seenAddrs[r.Address] = struct{}{}

		switch r.Source {
		case types.SourceModel:
			modelCount++
			if r.Address != "172.64.1.1" {
				t.Errorf("Unexpected model address: %s", r.Address)
			}
		case types.SourceSynthetic:
			syntheticCount++
		}
	}
	if modelCount != 1 {
		t.Errorf("Expected 1 model record, got %d", modelCount)
	}
	if syntheticCount != 4 {
		t.Errorf("Expected 4 synthetic records, got %d", syntheticCount)
	}
}

func TestBuildExcludesSeen(t *testing.T) {
	seen := NewSeenSet()
	seen.Add("172.64.1.1")

	builder, err := NewBuilder(Options{
		Count:     3,
		Suggester: &stubSuggester{list: []string{"172.64.1.1", "151.101.0.1"}},
		Rand:      testRand(),
	})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}

	records, err := builder.Build(context.Background(), seen)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	for _, r := range records {
		if r.Address == "172.64.1.1" {
			t.Error("Address from the entering seen set was returned")
		}
	}
	if !seen.Has("151.101.0.1") {
		t.Error("Seen set not updated with model address from this pass")
	}
}

func TestBuildAccumulatingPasses(t *testing.T) {
	// Repeated passes with an accumulating seen set never repeat an
	// address
	seen := NewSeenSet()
	all := make(map[string]struct{})

	for pass := 0; pass < 5; pass++ {
		builder, err := NewBuilder(Options{Count: 10, Rand: testRand()})
		if err != nil {
			t.Fatalf("NewBuilder() error = %v", err)
		}

		records, err := builder.Build(context.Background(), seen)
		if err != nil {
			t.Fatalf("Build() pass %d error = %v", pass, err)
		}
		for _, r := range records {
			if _, ok := all[r.Address]; ok {
				t.Errorf("Address %s repeated across passes", r.Address)
			}
			all[r.Address] = struct{}{}
		}
	}

	if seen.Len() != 50 {
		t.Errorf("Seen set has %d entries after 5 passes of 10, want 50", seen.Len())
	}
}

func TestBuildPoolExhausted(t *testing.T) {
	// Saturate a one-prefix table: capacity is 65536, so a fully
	// covered seen set must fail fast with ErrPoolExhausted
	seen := NewSeenSet()
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			seen.Add(fmt.Sprintf("10.0.%d.%d", a, b))
		}
	}

	builder, err := NewBuilder(Options{
		Count:    1,
		Prefixes: []string{"10.0."},
		Rand:     testRand(),
	})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}

	_, err = builder.Build(context.Background(), seen)
	if !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("Build() error = %v, want ErrPoolExhausted", err)
	}

	if seen.Len() != 65536 {
		t.Errorf("Seen set mutated on failure: %d entries", seen.Len())
	}
}

func TestBuildNearlyExhausted(t *testing.T) {
	// One free address left: requesting more than remains must fail,
	// requesting exactly the remainder must find it
	seen := NewSeenSet()
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			if a == 0 && b == 0 {
				continue
			}
			seen.Add(fmt.Sprintf("10.0.%d.%d", a, b))
		}
	}

	builder, err := NewBuilder(Options{
		Count:    2,
		Prefixes: []string{"10.0."},
		Rand:     testRand(),
	})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	if _, err := builder.Build(context.Background(), seen); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("Build() error = %v, want ErrPoolExhausted when free space is short", err)
	}

	// generous attempt cap: one free slot in 65536 takes many draws
	builder, err = NewBuilder(Options{
		Count:       1,
		Prefixes:    []string{"10.0."},
		MaxAttempts: 1 << 24,
		Rand:        testRand(),
	})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	records, err := builder.Build(context.Background(), seen)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(records) != 1 || records[0].Address != "10.0.0.0" {
		t.Errorf("Build() = %v, want the single remaining address 10.0.0.0", records)
	}
}

func TestBuildOnRecordOrdering(t *testing.T) {
	var progress []types.AddressRecord
	builder, err := NewBuilder(Options{
		Count:     8,
		Suggester: &stubSuggester{list: []string{"151.101.0.1"}},
		Rand:      testRand(),
		OnRecord: func(record types.AddressRecord) {
			progress = append(progress, record)
		},
	})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}

	records, err := builder.Build(context.Background(), NewSeenSet())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(progress) != len(records) {
		t.Fatalf("OnRecord fired %d times for %d records", len(progress), len(records))
	}
	for i := range records {
		if progress[i].Address != records[i].Address {
			t.Errorf("Progress[%d] = %s, want %s", i, progress[i].Address, records[i].Address)
		}
	}
}

func TestBuildPassID(t *testing.T) {
	builder, err := NewBuilder(Options{Count: 2, PassID: "pass-1", Rand: testRand()})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	records, err := builder.Build(context.Background(), NewSeenSet())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for _, r := range records {
		if r.PassID != "pass-1" {
			t.Errorf("Record %s pass id = %q, want pass-1", r.Address, r.PassID)
		}
	}
}

func TestBuildContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	builder, err := NewBuilder(Options{Count: 10, Rand: testRand()})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	if _, err := builder.Build(ctx, NewSeenSet()); !errors.Is(err, context.Canceled) {
		t.Errorf("Build() error = %v, want context.Canceled", err)
	}
}

func TestSeenSet(t *testing.T) {
	s := NewSeenSet()
	if s.Has("1.2.3.4") {
		t.Error("Empty set reports an address as seen")
	}

	s.Add("1.2.3.4")
	s.Add("1.2.3.4")
	s.Add("5.6.7.8")

	if !s.Has("1.2.3.4") {
		t.Error("Added address not reported as seen")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}

	sorted := s.Sorted()
	if len(sorted) != 2 || sorted[0] != "1.2.3.4" || sorted[1] != "5.6.7.8" {
		t.Errorf("Sorted() = %v, want [1.2.3.4 5.6.7.8]", sorted)
	}
}

func BenchmarkBuild(b *testing.B) {
	for i := 0; i < b.N; i++ {
		builder, err := NewBuilder(Options{Count: 10, Rand: testRand()})
		if err != nil {
			b.Fatal(err)
		}
		if _, err := builder.Build(context.Background(), NewSeenSet()); err != nil {
			b.Fatal(err)
		}
	}
}
