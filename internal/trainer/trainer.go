// Package trainer drives a slide.Network through repeated mini-batch
// training steps over a dataset, applying a sample-count-based rehash/
// rebuild cadence and reporting progress to an optional callback.
package trainer

import (
	"context"
	"fmt"

	"slidenet/internal/slide"
)

// Progress is a snapshot of training state reported once per iteration.
type Progress struct {
	Iter     int
	Loss     float64
	Accuracy float64
}

// Trainer owns the network being trained and the sample counts at which
// its sparse layers should be rebuilt (hasher reseeded) and rehashed
// (neurons re-inserted into the LSH index).
type Trainer struct {
	Net *slide.Network

	// CasePerRehash and CasePerRebuild are sample counts, not iteration
	// counts: the boolean for a given batch fires once that many samples
	// have been seen in total, i.e. when
	// (iter+1) mod (casePerX/batchSize) == 0.
	CasePerRehash  int
	CasePerRebuild int
}

// Schedule reports whether iteration iter (0-based) with the given
// batchSize should trigger a rehash and/or rebuild. It is pure and safe to
// call outside of Run for testing against a reference computation.
func (tr Trainer) Schedule(iter, batchSize int) (rehash, rebuild bool) {
	if tr.CasePerRehash > 0 && batchSize > 0 {
		period := tr.CasePerRehash / batchSize
		if period > 0 && (iter+1)%period == 0 {
			rehash = true
		}
	}
	if tr.CasePerRebuild > 0 && batchSize > 0 {
		period := tr.CasePerRebuild / batchSize
		if period > 0 && (iter+1)%period == 0 {
			rebuild = true
		}
	}
	return rehash, rebuild
}

// Run slices cases into consecutive batches of batchSize (wrapping back to
// the start once exhausted) and calls Net.Train once per iteration, for
// iterations iterations total. progress, if non-nil, is invoked after every
// iteration with the batch's training loss and accuracy. Run returns early
// if ctx is cancelled between iterations.
func (tr Trainer) Run(ctx context.Context, cases []slide.Case, batchSize, iterations int, progress func(Progress)) error {
	if len(cases) == 0 {
		return fmt.Errorf("trainer: empty dataset")
	}
	if batchSize <= 0 {
		return fmt.Errorf("trainer: batch size must be positive")
	}

	offset := 0
	for iter := 0; iter < iterations; iter++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch := nextBatch(cases, offset, batchSize)
		offset = (offset + batchSize) % len(cases)

		rehash, rebuild := tr.Schedule(iter, batchSize)
		if err := tr.Net.Train(batch, iter, rehash, rebuild); err != nil {
			return fmt.Errorf("trainer: iteration %d: %w", iter, err)
		}

		if progress != nil {
			correct, err := tr.Net.Test(batch)
			if err != nil {
				return fmt.Errorf("trainer: iteration %d: evaluate: %w", iter, err)
			}
			loss, err := tr.Net.BatchLoss(batch)
			if err != nil {
				return fmt.Errorf("trainer: iteration %d: loss: %w", iter, err)
			}
			progress(Progress{
				Iter:     iter,
				Loss:     loss,
				Accuracy: float64(correct) / float64(len(batch)),
			})
		}
	}
	return nil
}

// nextBatch returns the next batchSize cases starting at offset, wrapping
// around to the front of cases when the slice is exhausted.
func nextBatch(cases []slide.Case, offset, batchSize int) []slide.Case {
	if batchSize >= len(cases) {
		return cases
	}
	batch := make([]slide.Case, batchSize)
	for i := 0; i < batchSize; i++ {
		batch[i] = cases[(offset+i)%len(cases)]
	}
	return batch
}
