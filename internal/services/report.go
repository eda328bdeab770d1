package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tbourn/entra-ingest/internal/domain"
)

// Report aggregates the per-record outcomes of one ingest run.
type Report struct {
	RunID            string    `json:"run_id"`
	Accepted         int       `json:"accepted"`
	SkippedMalformed int       `json:"skipped_malformed"`
	SkippedDuplicate int       `json:"skipped_duplicate"`
	DomainsSeeded    int       `json:"domains_seeded"`
	DomainsCreated   int       `json:"domains_created"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// NewReport starts a report with a fresh run id.
func NewReport() *Report {
	return &Report{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
}

// Add counts one record outcome.
func (r *Report) Add(o domain.Outcome) {
	switch o {
	case domain.OutcomeAccepted:
		r.Accepted++
	case domain.OutcomeSkippedMalformed:
		r.SkippedMalformed++
	case domain.OutcomeSkippedDuplicate:
		r.SkippedDuplicate++
	}
}

// Total is the number of lines that reached the sink.
func (r *Report) Total() int {
	return r.Accepted + r.SkippedMalformed + r.SkippedDuplicate
}

// Duration is the wall time of the run, zero until it is finished.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (r *Report) MarshalZerologObject(e *zerolog.Event) {
	e.Str("run_id", r.RunID).
		Int("accepted", r.Accepted).
		Int("skipped_malformed", r.SkippedMalformed).
		Int("skipped_duplicate", r.SkippedDuplicate).
		Int("domains_seeded", r.DomainsSeeded).
		Int("domains_created", r.DomainsCreated).
		Dur("duration", r.Duration())
}
