package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medqueue/medqueue/internal/platform/predictor"
)

// mockRepo keeps appointments in memory with the same numbering
// behavior as the Postgres repository.
type mockRepo struct {
	appts map[uuid.UUID]*Appointment
	seq   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (r *mockRepo) InsertAt(_ context.Context, appt *Appointment, position int) error {
	for _, a := range r.appts {
		if a.Status == StatusWaiting && a.QueueNumber >= position {
			a.QueueNumber++
		}
	}
	appt.ID = uuid.New()
	appt.Status = StatusWaiting
	appt.QueueNumber = position
	r.seq++
	appt.CreatedAt = time.Unix(int64(r.seq), 0)
	r.appts[appt.ID] = appt
	return nil
}

func (r *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (r *mockRepo) ListWaiting(_ context.Context) ([]*Appointment, error) {
	var items []*Appointment
	for _, a := range r.appts {
		if a.Status == StatusWaiting {
			items = append(items, a)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].QueueNumber < items[j].QueueNumber })
	return items, nil
}

func (r *mockRepo) List(_ context.Context, limit, offset int) ([]*Appointment, int, error) {
	var items []*Appointment
	for _, a := range r.appts {
		items = append(items, a)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	total := len(items)
	if offset >= len(items) {
		return nil, total, nil
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items, total, nil
}

func (r *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var items []*Appointment
	for _, a := range r.appts {
		if a.PatientID == patientID {
			items = append(items, a)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	total := len(items)
	if offset >= len(items) {
		return nil, total, nil
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items, total, nil
}

func (r *mockRepo) UpdateQueueState(_ context.Context, id uuid.UUID, queueNumber int, priority, waitMinutes float64) error {
	a, ok := r.appts[id]
	if !ok {
		return ErrNotFound
	}
	a.QueueNumber = queueNumber
	a.TriagePriority = priority
	a.PredictedWaitMinutes = waitMinutes
	return nil
}

func (r *mockRepo) Complete(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if a.Status == StatusCompleted {
		return a, nil
	}
	released := a.QueueNumber
	a.Status = StatusCompleted
	a.QueueNumber = 0
	for _, other := range r.appts {
		if other.Status == StatusWaiting && other.QueueNumber > released {
			other.QueueNumber--
		}
	}
	return a, nil
}

// mockEstimator returns a fixed rate, or an error when failing is set.
// The engine fans Predict out across goroutines, so the call counter
// must be atomic.
type mockEstimator struct {
	rate    float64
	failing bool
	calls   atomic.Int64
}

func (m *mockEstimator) Predict(_ context.Context, _ []string, queueSize int) (predictor.Prediction, error) {
	m.calls.Add(1)
	if m.failing {
		return predictor.Prediction{}, predictor.ErrUnavailable
	}
	return predictor.Prediction{
		TotalWaitMinutes:  m.rate * float64(queueSize),
		MinutesPerPatient: m.rate,
	}, nil
}

// mockDispatcher records which appointments were notified.
type mockDispatcher struct {
	notified []uuid.UUID
}

func (m *mockDispatcher) NotifyNext(_ context.Context, appt *Appointment) error {
	m.notified = append(m.notified, appt.ID)
	return nil
}

func newTestEngine(repo Repository, est Estimator, disp Dispatcher) *Engine {
	return NewEngine(repo, est, disp, nil, zerolog.Nop(), 4)
}

func mustEnqueue(t *testing.T, e *Engine, symptoms ...string) *Appointment {
	t.Helper()
	appt, err := e.Enqueue(context.Background(), uuid.New(), symptoms)
	if err != nil {
		t.Fatalf("Enqueue(%v): %v", symptoms, err)
	}
	return appt
}

func assertContiguous(t *testing.T, repo Repository) []*Appointment {
	t.Helper()
	waiting, err := repo.ListWaiting(context.Background())
	if err != nil {
		t.Fatalf("ListWaiting: %v", err)
	}
	for i, a := range waiting {
		if a.QueueNumber != i+1 {
			t.Fatalf("queue numbering broken: position %d has queue_number %d", i+1, a.QueueNumber)
		}
	}
	return waiting
}

func TestEnqueue_OrdersByPriority(t *testing.T) {
	repo := newMockRepo()
	e := newTestEngine(repo, &mockEstimator{rate: 10}, nil)

	mild := mustEnqueue(t, e, "cough")                // 1.0
	urgent := mustEnqueue(t, e, "chest_pain")         // 5.0, jumps ahead
	medium := mustEnqueue(t, e, "fever")              // 3.0, between them

	waiting := assertContiguous(t, repo)
	if len(waiting) != 3 {
		t.Fatalf("waiting = %d, want 3", len(waiting))
	}
	wantOrder := []uuid.UUID{urgent.ID, medium.ID, mild.ID}
	for i, want := range wantOrder {
		if waiting[i].ID != want {
			t.Errorf("position %d: got %s, want %s", i+1, waiting[i].ID, want)
		}
	}
}

func TestEnqueue_TiesKeepArrivalOrder(t *testing.T) {
	repo := newMockRepo()
	e := newTestEngine(repo, &mockEstimator{rate: 10}, nil)

	first := mustEnqueue(t, e, "fever")
	second := mustEnqueue(t, e, "fever")

	waiting := assertContiguous(t, repo)
	if waiting[0].ID != first.ID || waiting[1].ID != second.ID {
		t.Error("equal priorities must keep arrival order")
	}
}

func TestEnqueue_RejectsInvalidInput(t *testing.T) {
	e := newTestEngine(newMockRepo(), &mockEstimator{rate: 10}, nil)

	if _, err := e.Enqueue(context.Background(), uuid.Nil, []string{"fever"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("missing patient id: got %v, want ErrInvalid", err)
	}
	if _, err := e.Enqueue(context.Background(), uuid.New(), nil); !errors.Is(err, ErrInvalid) {
		t.Errorf("empty symptoms: got %v, want ErrInvalid", err)
	}
	if _, err := e.Enqueue(context.Background(), uuid.New(), []string{"  "}); !errors.Is(err, ErrInvalid) {
		t.Errorf("blank symptoms: got %v, want ErrInvalid", err)
	}
	if _, err := e.Enqueue(context.Background(), uuid.New(), []string{"glowing"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("unknown symptom: got %v, want ErrInvalid", err)
	}
}

func TestEnqueue_EstimatorDownStillPlaces(t *testing.T) {
	repo := newMockRepo()
	e := newTestEngine(repo, &mockEstimator{failing: true}, nil)

	appt, err := e.Enqueue(context.Background(), uuid.New(), []string{"fever"})
	if !errors.Is(err, predictor.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if appt == nil {
		t.Fatal("expected appointment despite estimator failure")
	}
	waiting := assertContiguous(t, repo)
	if len(waiting) != 1 {
		t.Fatalf("waiting = %d, want 1 (placement must commit)", len(waiting))
	}
}

func TestRecalculateAll_WaitsScaleWithPosition(t *testing.T) {
	repo := newMockRepo()
	e := newTestEngine(repo, &mockEstimator{rate: 10}, nil)

	mustEnqueue(t, e, "cough")
	mustEnqueue(t, e, "cough")
	mustEnqueue(t, e, "cough")

	waiting := assertContiguous(t, repo)
	// All priorities 1.0, severity factor 1.0, rate 10: waits 0, 10, 20.
	wantWaits := []float64{0, 10, 20}
	for i, a := range waiting {
		if a.PredictedWaitMinutes != wantWaits[i] {
			t.Errorf("position %d wait = %v, want %v", i+1, a.PredictedWaitMinutes, wantWaits[i])
		}
	}
}

func TestRecalculateAll_SeverityShortensWaits(t *testing.T) {
	repo := newMockRepo()
	e := newTestEngine(repo, &mockEstimator{rate: 10}, nil)

	mustEnqueue(t, e, "chest_pain", "shortness_of_breath") // 10.0, factor 0.5
	mustEnqueue(t, e, "chest_pain")                        // 5.0, factor 0.75
	mustEnqueue(t, e, "cough")                             // 1.0, factor 1.0

	waiting := assertContiguous(t, repo)
	wantWaits := []float64{0, 7.5, 20}
	for i, a := range waiting {
		if a.PredictedWaitMinutes != wantWaits[i] {
			t.Errorf("position %d wait = %v, want %v", i+1, a.PredictedWaitMinutes, wantWaits[i])
		}
	}
}

func TestRecalculateAll_Idempotent(t *testing.T) {
	repo := newMockRepo()
	e := newTestEngine(repo, &mockEstimator{rate: 10}, nil)

	mustEnqueue(t, e, "fever")
	mustEnqueue(t, e, "cough")

	before := assertContiguous(t, repo)
	snapshot := make([]Appointment, len(before))
	for i, a := range before {
		snapshot[i] = *a
	}

	if err := e.RecalculateAll(context.Background()); err != nil {
		t.Fatalf("RecalculateAll: %v", err)
	}

	after := assertContiguous(t, repo)
	for i, a := range after {
		if a.QueueNumber != snapshot[i].QueueNumber ||
			a.TriagePriority != snapshot[i].TriagePriority ||
			a.PredictedWaitMinutes != snapshot[i].PredictedWaitMinutes {
			t.Errorf("position %d changed on repeated recalculation", i+1)
		}
	}
}

func TestRecalculateAll_EmptyQueueNoEstimatorCalls(t *testing.T) {
	est := &mockEstimator{rate: 10}
	e := newTestEngine(newMockRepo(), est, nil)

	if err := e.RecalculateAll(context.Background()); err != nil {
		t.Fatalf("RecalculateAll: %v", err)
	}
	if got := est.calls.Load(); got != 0 {
		t.Errorf("estimator called %d times on empty queue, want 0", got)
	}
}

func TestComplete_ShiftsAndNotifies(t *testing.T) {
	repo := newMockRepo()
	disp := &mockDispatcher{}
	e := newTestEngine(repo, &mockEstimator{rate: 10}, disp)

	first := mustEnqueue(t, e, "chest_pain")
	second := mustEnqueue(t, e, "fever")
	third := mustEnqueue(t, e, "cough")

	done, err := e.Complete(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", done.Status)
	}

	waiting := assertContiguous(t, repo)
	if len(waiting) != 2 {
		t.Fatalf("waiting = %d, want 2", len(waiting))
	}
	if waiting[0].ID != second.ID || waiting[1].ID != third.ID {
		t.Error("remaining entries out of order after completion")
	}

	if len(disp.notified) != 1 || disp.notified[0] != second.ID {
		t.Errorf("notified = %v, want exactly the new front %s", disp.notified, second.ID)
	}
}

func TestComplete_MiddleEntryClosesGap(t *testing.T) {
	repo := newMockRepo()
	disp := &mockDispatcher{}
	e := newTestEngine(repo, &mockEstimator{rate: 10}, disp)

	first := mustEnqueue(t, e, "chest_pain")
	second := mustEnqueue(t, e, "fever")
	third := mustEnqueue(t, e, "cough")

	if _, err := e.Complete(context.Background(), second.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	waiting := assertContiguous(t, repo)
	if len(waiting) != 2 {
		t.Fatalf("waiting = %d, want 2", len(waiting))
	}
	if waiting[0].ID != first.ID || waiting[1].ID != third.ID {
		t.Error("surviving entries must keep relative order")
	}
	// The head did not change, but it still gets its one-time message.
	if len(disp.notified) != 1 || disp.notified[0] != first.ID {
		t.Errorf("notified = %v, want the head %s", disp.notified, first.ID)
	}
}

func TestComplete_UnknownID(t *testing.T) {
	e := newTestEngine(newMockRepo(), &mockEstimator{rate: 10}, nil)
	_, err := e.Complete(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestComplete_AlreadyCompletedIsNoOp(t *testing.T) {
	repo := newMockRepo()
	e := newTestEngine(repo, &mockEstimator{rate: 10}, nil)

	appt := mustEnqueue(t, e, "fever")
	other := mustEnqueue(t, e, "cough")

	if _, err := e.Complete(context.Background(), appt.ID); err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	if _, err := e.Complete(context.Background(), appt.ID); err != nil {
		t.Fatalf("second Complete: %v", err)
	}

	waiting := assertContiguous(t, repo)
	if len(waiting) != 1 || waiting[0].ID != other.ID {
		t.Error("repeated completion must not shift the queue again")
	}
}

func TestEngine_ConcurrentMutationsKeepNumbering(t *testing.T) {
	repo := newMockRepo()
	e := newTestEngine(repo, &mockEstimator{rate: 10}, &mockDispatcher{})

	symptomSets := [][]string{
		{"cough"},
		{"fever"},
		{"chest_pain"},
		{"fever", "vomiting"},
	}

	const enqueues = 16
	var mu sync.Mutex
	ids := make([]uuid.UUID, 0, enqueues)

	var wg sync.WaitGroup
	for i := 0; i < enqueues; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			appt, err := e.Enqueue(context.Background(), uuid.New(), symptomSets[i%len(symptomSets)])
			if err != nil {
				t.Errorf("Enqueue: %v", err)
				return
			}
			mu.Lock()
			ids = append(ids, appt.ID)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(ids) != enqueues {
		t.Fatalf("enqueued = %d, want %d", len(ids), enqueues)
	}

	const completes = 8
	for _, id := range ids[:completes] {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			if _, err := e.Complete(context.Background(), id); err != nil {
				t.Errorf("Complete: %v", err)
			}
		}(id)
	}
	wg.Wait()

	waiting := assertContiguous(t, repo)
	if len(waiting) != enqueues-completes {
		t.Fatalf("waiting = %d, want %d", len(waiting), enqueues-completes)
	}
	for i := 1; i < len(waiting); i++ {
		if PriorityOf(waiting[i]) > PriorityOf(waiting[i-1]) {
			t.Errorf("priority order broken at position %d: %v after %v",
				i+1, PriorityOf(waiting[i]), PriorityOf(waiting[i-1]))
		}
	}
}

func TestEndToEnd_TriageOrdering(t *testing.T) {
	repo := newMockRepo()
	e := newTestEngine(repo, &mockEstimator{rate: 10}, nil)

	a := mustEnqueue(t, e, "cough")                         // 1.0
	b := mustEnqueue(t, e, "chest_pain", "fever")           // 8.0
	c := mustEnqueue(t, e, "fever", "vomiting")             // 6.0

	waiting := assertContiguous(t, repo)
	wantOrder := []uuid.UUID{b.ID, c.ID, a.ID}
	for i, want := range wantOrder {
		if waiting[i].ID != want {
			t.Errorf("position %d: got %s, want %s", i+1, waiting[i].ID, want)
		}
	}
	wantNumbers := []int{1, 2, 3}
	for i, a := range waiting {
		if a.QueueNumber != wantNumbers[i] {
			t.Errorf("position %d queue_number = %d, want %d", i+1, a.QueueNumber, wantNumbers[i])
		}
	}
}
