package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/projectdiscovery/gologger"
	"github.com/rs/xid"

	"github.com/edgediscovery/cleanip/pkg/pool"
	"github.com/edgediscovery/cleanip/pkg/provider"
	"github.com/edgediscovery/cleanip/pkg/suggest"
	"github.com/edgediscovery/cleanip/pkg/types"
	"github.com/projectdiscovery/utils/batcher"
	errorutil "github.com/projectdiscovery/utils/errors"
)

var (
	// Default batch size for output file flushes
	DefaultBatchSize = 100
	// Default flush interval for output file flushes
	DefaultFlushInterval = 5 * time.Second
)

// Runner contains the internal logic of the program. It owns the
// session seen set and triggers generation passes against it.
type Runner struct {
	options   *Options
	seen      *pool.SeenSet
	suggester pool.Suggester

	outputFile    *os.File
	outputBatcher *batcher.Batcher[types.AddressRecord]

	inFlight atomic.Bool
}

// NewRunner instance
func NewRunner(options *Options) (*Runner, error) {
	r := &Runner{
		options: options,
		seen:    pool.NewSeenSet(),
	}

	if !options.NoAI {
		r.suggester = suggest.NewClient(suggest.Options{
			APIURL:  options.AIURL,
			APIKey:  options.AIKey,
			Model:   options.AIModel,
			Timeout: time.Duration(options.Timeout) * time.Second,
		})
	}

	if options.Output != "" {
		f, err := os.OpenFile(options.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, errorutil.NewWithErr(err).Msgf("Failed to open output file: %s", options.Output)
		}
		r.outputFile = f
		r.outputBatcher = batcher.New(
			batcher.WithMaxCapacity[types.AddressRecord](DefaultBatchSize),
			batcher.WithFlushInterval[types.AddressRecord](DefaultFlushInterval),
			batcher.WithFlushCallback[types.AddressRecord](r.flushRecords),
		)
		go r.outputBatcher.Run()
	}

	return r, nil
}

// Run executes the configured generation passes. With a positive
// interval it keeps triggering passes until the context is cancelled,
// mirroring the repeated refresh of an interactive session.
func (r *Runner) Run(ctx context.Context) error {
	gologger.Verbose().Msgf("prefix registry covers %d networks (%d addresses)", len(provider.Networks()), provider.Capacity())

	if r.options.Interval <= 0 {
		for pass := 0; pass < r.options.Passes; pass++ {
			if err := r.TriggerPass(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	interval := time.Duration(r.options.Interval) * time.Second
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := r.TriggerPass(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				// exhaustion presents as "retry", not a crash
				gologger.Error().Msgf("%v", err)
			}
			time.Sleep(interval)
		}
	}
}

// TriggerPass runs one generation pass. A trigger while another pass
// is in flight is rejected here, not by the builder.
func (r *Runner) TriggerPass(ctx context.Context) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		gologger.Warning().Msg("a generation pass is already in flight, ignoring trigger")
		return nil
	}
	defer r.inFlight.Store(false)

	passID := xid.New().String()
	gologger.Verbose().Msgf("starting pass %s (count=%d, seen=%d)", passID, r.options.Count, r.seen.Len())

	builder, err := pool.NewBuilder(pool.Options{
		Count:     r.options.Count,
		MaxCount:  r.options.MaxCount,
		Suggester: r.suggester,
		PassID:    passID,
		OnRecord: func(record types.AddressRecord) {
			gologger.Verbose().Msgf("accepted %s (%s, %dms, %s)", record.Address, record.Provider, record.LatencyMs, record.Source)
		},
	})
	if err != nil {
		return err
	}

	started := time.Now()
	records, err := builder.Build(ctx, r.seen)
	if err != nil {
		if errors.Is(err, pool.ErrPoolExhausted) {
			return fmt.Errorf("pass %s: generation failed, retry: %w", passID, err)
		}
		return err
	}

	r.renderRecords(records)

	if r.outputBatcher != nil {
		for _, record := range records {
			r.outputBatcher.Append(record)
		}
	}

	var modelCount, syntheticCount int
	for _, record := range records {
		if record.Source == types.SourceModel {
			modelCount++
		} else {
			syntheticCount++
		}
	}
	gologger.Info().Msgf("pass %s produced %d addresses (%d model, %d synthetic) in %s", passID, len(records), modelCount, syntheticCount, time.Since(started).Round(time.Millisecond))

	return nil
}

// renderRecords prints the generated records to stdout
func (r *Runner) renderRecords(records []types.AddressRecord) {
	if r.options.JSON {
		enc := json.NewEncoder(os.Stdout)
		for _, record := range records {
			if err := enc.Encode(record); err != nil {
				gologger.Warning().Msgf("error encoding record: %v", err)
			}
		}
		return
	}

	for i, record := range records {
		fmt.Printf("%d. %s [%s] %s %s\n",
			i+1,
			au.Bold(record.Address),
			au.Cyan(record.Provider),
			colorLatency(record.LatencyMs),
			au.Gray(12, string(record.Source)),
		)
	}
}

// colorLatency renders the simulated latency with a traffic-light color
func colorLatency(latencyMs int) string {
	label := fmt.Sprintf("%dms", latencyMs)
	switch {
	case latencyMs <= 70:
		return au.Green(label).String()
	case latencyMs <= 120:
		return au.Yellow(label).String()
	default:
		return au.Red(label).String()
	}
}

// flushRecords appends a batch of records to the output file as JSONL
func (r *Runner) flushRecords(records []types.AddressRecord) {
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			gologger.Warning().Msgf("error marshaling record %s: %v", record.Address, err)
			continue
		}
		if _, err := r.outputFile.Write(append(data, '\n')); err != nil {
			gologger.Warning().Msgf("error writing record %s: %v", record.Address, err)
		}
	}
}

// Seen exposes the accumulated session seen set
func (r *Runner) Seen() *pool.SeenSet {
	return r.seen
}

// Close the runner instance
func (r *Runner) Close() {
	if r.outputBatcher != nil {
		r.outputBatcher.Stop()
		r.outputBatcher.WaitDone()
	}
	if r.outputFile != nil {
		_ = r.outputFile.Close()
	}
}
