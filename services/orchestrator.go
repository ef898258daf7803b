package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"visitauto/models"
)

// FormFiller is what the orchestrator drives once per record. Implementations
// own all page interaction; the orchestrator owns sequencing and isolation.
type FormFiller interface {
	// EstablishSession brings the browser to the ready-to-fill state
	// (navigation, login, motive selection). Called once per batch.
	EstablishSession(ctx context.Context) error
	// ResetForm returns the page to a clean form between records.
	ResetForm(ctx context.Context) error
	// FillAndSubmit processes one record end to end. Field stats are
	// meaningful even on failure.
	FillAndSubmit(ctx context.Context, rec models.Record) (models.FieldStats, error)
}

// Orchestrator runs a batch of records through a FormFiller with per-record
// isolation: one record's failure, or even panic, never stops the batch.
// Only session establishment is treated as fatal.
type Orchestrator struct {
	Filler FormFiller
	Source models.RecordSource
	// SettleDelay is the pause between records, letting the page finish
	// post-submit transitions. Zero means 2s.
	SettleDelay time.Duration
	// OnRecordFailure, if set, runs after each failed record (screenshots,
	// alerts). Its errors are logged, never propagated.
	OnRecordFailure func(index int, rec models.Record, err error)
}

// RunBatch processes every record in the source and returns the aggregate.
// The error is non-nil only when the batch could not start at all.
func (o *Orchestrator) RunBatch(ctx context.Context) (models.BatchResult, error) {
	total := o.Source.Count()
	result := models.BatchResult{TotalRecords: total}

	if err := o.Filler.EstablishSession(ctx); err != nil {
		log.Printf("Session establishment failed, aborting batch: %v", err)
		return result, fmt.Errorf("%w: %v", ErrSessionEstablishment, err)
	}

	settle := o.SettleDelay
	if settle == 0 {
		settle = 2 * time.Second
	}

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			log.Printf("Batch cancelled after %d/%d records: %v", i, total, err)
			return result, err
		}

		rec, ok := o.Source.RecordAt(i)
		if !ok {
			result.Records = append(result.Records, models.RecordResult{
				Index:  i,
				Reason: models.ReasonInvalidRecord,
				Error:  "record could not be read from source",
			})
			result.FailedCount++
			continue
		}

		if i > 0 {
			if err := o.Filler.ResetForm(ctx); err != nil {
				log.Printf("Record %d: form reset failed: %v", i+1, err)
			}
		}

		rr := o.processOne(ctx, i, rec)
		result.Records = append(result.Records, rr)
		if rr.Success {
			result.SuccessCount++
			log.Printf("Record %d/%d succeeded (%d/%d fields)", i+1, total, rr.FieldStats.Succeeded, rr.FieldStats.Attempted)
		} else {
			result.FailedCount++
			log.Printf("Record %d/%d failed (%s): %s", i+1, total, rr.Reason, rr.Error)
			if o.OnRecordFailure != nil {
				o.OnRecordFailure(i, rec, fmt.Errorf("%s", rr.Error))
			}
		}

		if i < total-1 {
			time.Sleep(settle)
		}
	}

	log.Printf("Batch finished: %d succeeded, %d failed of %d", result.SuccessCount, result.FailedCount, total)
	return result, nil
}

// processOne isolates a single record, converting panics inside the filler
// into a failed record result.
func (o *Orchestrator) processOne(ctx context.Context, index int, rec models.Record) (rr models.RecordResult) {
	rr = models.RecordResult{Index: index}
	defer func() {
		if r := recover(); r != nil {
			rr.Success = false
			rr.Reason = models.ReasonProcessingPanic
			rr.Error = fmt.Sprintf("panic while processing record: %v", r)
		}
	}()

	stats, err := o.Filler.FillAndSubmit(ctx, rec)
	rr.FieldStats = stats
	if err != nil {
		rr.Reason = ReasonFor(err)
		rr.Error = err.Error()
		return rr
	}
	rr.Success = true
	return rr
}
