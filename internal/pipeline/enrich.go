package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"mapaq-pipeline/internal/dict"
	"mapaq-pipeline/internal/model"
)

// ------------------- Enrichment -------------------

// HistorySource provides prior-violation aggregates for an establishment.
// Access is read-only and may be shared across concurrent runs.
type HistorySource interface {
	ViolationHistory(ctx context.Context, establishmentID string) (count int, amount float64, err error)
}

// Enricher attaches derived attributes: normalized address (best effort),
// cuisine theme, size class and historical violation aggregates. It never
// writes anywhere and never fails an individual record; only an unavailable
// history lookup fails the stage, and that failure is retryable.
type Enricher struct {
	Themes    *dict.ThemeDictionary
	Addresses *dict.AddressDictionary
	History   HistorySource
	Workers   int
}

// Enrich processes all records through a small worker pool. The pool is an
// intra-stage optimization only: Enrich does not return until every record
// is done, so stage boundaries stay synchronization points.
func (e *Enricher) Enrich(ctx context.Context, batch *model.Batch) (*model.Batch, error) {
	workers := e.Workers
	if workers <= 0 {
		workers = 3
	}

	in := make(chan *model.Record)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	resolved, unresolved := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range in {
				ok, err := e.enrichRecord(ctx, rec)
				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
				}
				if ok {
					resolved++
				} else {
					unresolved++
				}
				mu.Unlock()
			}
		}()
	}

	for _, rec := range batch.Records {
		select {
		case <-ctx.Done():
			close(in)
			wg.Wait()
			return nil, ctx.Err()
		case in <- rec:
		}
	}
	close(in)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	fmt.Printf("🔍 Enrichment done: %d records, %d addresses resolved, %d unresolved\n",
		len(batch.Records), resolved, unresolved)
	return batch, nil
}

// enrichRecord fills the derived attributes of one record. The returned
// bool reports whether the address resolved.
func (e *Enricher) enrichRecord(ctx context.Context, rec *model.Record) (bool, error) {
	rec.Theme = e.Themes.Classify(rec.Name)

	normalized, ok := e.Addresses.Resolve(rec.RawAddress)
	rec.Address = normalized
	if ok {
		rec.AddressConfidence = model.AddressResolved
	} else {
		rec.AddressConfidence = model.AddressUnresolved
	}

	if rec.SizeClass == "" {
		rec.SizeClass = estimateSize(rec.Name)
	}

	if e.History != nil && rec.ID != "" {
		count, amount, err := e.History.ViolationHistory(ctx, rec.ID)
		if err != nil {
			return ok, ErrSourceUnavailable(fmt.Sprintf("violation history lookup for %s", rec.ID), err)
		}
		rec.PriorViolations = count
		rec.PriorAmount = amount
	}
	return ok, nil
}

// estimateSize guesses the size class from the establishment name when the
// source carries none.
func estimateSize(name string) string {
	lower := strings.ToLower(name)
	for _, w := range []string{"express", "quick", "snack", "casse-croûte"} {
		if strings.Contains(lower, w) {
			return "small"
		}
	}
	for _, w := range []string{"palace", "grand", "royal", "banquet"} {
		if strings.Contains(lower, w) {
			return "large"
		}
	}
	return "medium"
}
