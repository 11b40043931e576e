package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/medqueue/medqueue/internal/platform/predictor"
	"github.com/medqueue/medqueue/internal/platform/websocket"
)

// Estimator produces wait predictions for the queue.
type Estimator interface {
	Predict(ctx context.Context, symptoms []string, queueSize int) (predictor.Prediction, error)
}

// Engine owns queue mutation. A single mutex serializes enqueue,
// completion and recalculation so concurrent requests always observe a
// contiguous 1..N waiting queue.
type Engine struct {
	mu         sync.Mutex
	repo       Repository
	estimator  Estimator
	dispatcher Dispatcher
	events     websocket.EventPublisher
	log        zerolog.Logger
	fanout     int
}

// NewEngine builds the queue engine. fanout bounds the number of
// concurrent estimator calls during recalculation; values below 1 are
// treated as 1. dispatcher and events may be nil.
func NewEngine(repo Repository, estimator Estimator, dispatcher Dispatcher, events websocket.EventPublisher, log zerolog.Logger, fanout int) *Engine {
	if fanout < 1 {
		fanout = 1
	}
	return &Engine{
		repo:       repo,
		estimator:  estimator,
		dispatcher: dispatcher,
		events:     events,
		log:        log,
		fanout:     fanout,
	}
}

// Enqueue validates the symptoms, scores them, places the appointment
// by priority and recalculates waits for the whole queue.
//
// The placement commits before recalculation runs. When the estimator
// is down the appointment is still in the queue at the right position;
// the error is returned so callers can signal degraded estimates.
func (e *Engine) Enqueue(ctx context.Context, patientID uuid.UUID, symptoms []string) (*Appointment, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalid)
	}
	normalized := NormalizeSymptoms(symptoms)
	if len(normalized) == 0 {
		return nil, fmt.Errorf("%w: at least one symptom is required", ErrInvalid)
	}
	for _, s := range normalized {
		if !IsAllowedSymptom(s) {
			return nil, fmt.Errorf("%w: unknown symptom %q", ErrInvalid, s)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	waiting, err := e.repo.ListWaiting(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing queue: %w", err)
	}
	if err := checkContiguous(waiting); err != nil {
		return nil, err
	}

	priority := Score(normalized)
	position := InsertionIndex(waiting, priority) + 1

	appt := &Appointment{
		PatientID:      patientID,
		Symptoms:       normalized,
		TriagePriority: priority,
	}
	if err := e.repo.InsertAt(ctx, appt, position); err != nil {
		return nil, fmt.Errorf("inserting appointment: %w", err)
	}

	e.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("patient_id", patientID.String()).
		Float64("priority", priority).
		Int("queue_number", position).
		Msg("appointment enqueued")

	e.publish(ctx, websocket.NewQueueEvent(websocket.EventAppointmentCreated, appt.ID.String(), patientID.String(), nil))

	if err := e.recalculateLocked(ctx); err != nil {
		return appt, err
	}

	fresh, err := e.repo.GetByID(ctx, appt.ID)
	if err != nil {
		return appt, nil
	}
	return fresh, nil
}

// RecalculateAll recomputes queue numbers, priorities and predicted
// waits for every waiting appointment. Safe to call repeatedly; a
// second run over an unchanged queue writes the same values.
func (e *Engine) RecalculateAll(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recalculateLocked(ctx)
}

// recalculateLocked fans estimator calls out across the waiting list,
// bounded by fanout, then writes results back in queue order. Callers
// must hold e.mu.
func (e *Engine) recalculateLocked(ctx context.Context) error {
	waiting, err := e.repo.ListWaiting(ctx)
	if err != nil {
		return fmt.Errorf("listing queue: %w", err)
	}
	if len(waiting) == 0 {
		return nil
	}

	preds := make([]predictor.Prediction, len(waiting))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanout)
	for i, appt := range waiting {
		i, appt := i, appt
		g.Go(func() error {
			p, err := e.estimator.Predict(gctx, appt.Symptoms, len(waiting))
			if err != nil {
				return err
			}
			preds[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, appt := range waiting {
		priority := PriorityOf(appt)
		wait := preds[i].MinutesPerPatient * float64(i) * severityFactor(priority)
		if err := e.repo.UpdateQueueState(ctx, appt.ID, i+1, priority, wait); err != nil {
			return fmt.Errorf("updating queue state: %w", err)
		}
	}

	e.publish(ctx, websocket.NewQueueEvent(websocket.EventQueueRecalculated, "", "", nil))
	return nil
}

// Complete marks an appointment done, shifts the queue behind it,
// recalculates waits and notifies whoever is now first.
func (e *Engine) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	appt, err := e.repo.Complete(ctx, id)
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("patient_id", appt.PatientID.String()).
		Msg("appointment completed")

	e.publish(ctx, websocket.NewQueueEvent(websocket.EventAppointmentCompleted, appt.ID.String(), appt.PatientID.String(), nil))

	if err := e.recalculateLocked(ctx); err != nil {
		return appt, err
	}

	e.notifyNextLocked(ctx)
	return appt, nil
}

// notifyNextLocked messages the front of the queue. Notification is
// best effort; failures are logged, never surfaced.
func (e *Engine) notifyNextLocked(ctx context.Context) {
	if e.dispatcher == nil {
		return
	}
	waiting, err := e.repo.ListWaiting(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("listing queue for notification")
		return
	}
	if len(waiting) == 0 {
		return
	}
	if err := e.dispatcher.NotifyNext(ctx, waiting[0]); err != nil {
		e.log.Warn().Err(err).
			Str("appointment_id", waiting[0].ID.String()).
			Msg("notifying next patient")
	}
}

// Get returns one appointment by id.
func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return e.repo.GetByID(ctx, id)
}

// List returns appointments newest first.
func (e *Engine) List(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	return e.repo.List(ctx, limit, offset)
}

// ListByPatient returns one patient's appointments newest first.
func (e *Engine) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return e.repo.ListByPatient(ctx, patientID, limit, offset)
}

// ListWaiting returns the current queue in order.
func (e *Engine) ListWaiting(ctx context.Context) ([]*Appointment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.repo.ListWaiting(ctx)
}

func (e *Engine) publish(ctx context.Context, event websocket.Event) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, event); err != nil {
		e.log.Warn().Err(err).Str("event", event.Type).Msg("publishing queue event")
	}
}

// checkContiguous verifies the waiting list is numbered 1..N in order.
func checkContiguous(waiting []*Appointment) error {
	for i, a := range waiting {
		if a.QueueNumber != i+1 {
			return fmt.Errorf("%w: position %d has queue_number %d", ErrQueueInconsistent, i+1, a.QueueNumber)
		}
	}
	return nil
}
