package service

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/lock"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// ─── Clock ──────────────────────────────────────────────────────────

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ─── Attempt + award store ──────────────────────────────────────────

type memStore struct {
	mu           sync.Mutex
	attempts     map[uuid.UUID]model.Attempt
	results      map[uuid.UUID][]model.QuestionAttempt
	awards       []model.PointAward
	instructorOf map[uuid.UUID]int
}

func newMemStore() *memStore {
	return &memStore{
		attempts:     make(map[uuid.UUID]model.Attempt),
		results:      make(map[uuid.UUID][]model.QuestionAttempt),
		instructorOf: make(map[uuid.UUID]int),
	}
}

func cloneAttempt(a model.Attempt) model.Attempt {
	a.Answers = maps.Clone(a.Answers)
	a.Questions = slices.Clone(a.Questions)
	return a
}

func (m *memStore) Create(_ context.Context, a *model.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.attempts {
		if e.UserID == a.UserID && e.AssessmentID == a.AssessmentID && e.Status == model.AttemptStatusInProgress {
			return errors.New("duplicate live attempt")
		}
	}
	a.ID = uuid.New()
	m.attempts[a.ID] = cloneAttempt(*a)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := cloneAttempt(a)
	return &c, nil
}

func (m *memStore) ListByUserAndAssessment(_ context.Context, userID int, assessmentID uuid.UUID) ([]model.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Attempt
	for _, a := range m.attempts {
		if a.UserID == userID && a.AssessmentID == assessmentID {
			out = append(out, cloneAttempt(a))
		}
	}
	slices.SortFunc(out, func(x, y model.Attempt) int { return x.AttemptNumber - y.AttemptNumber })
	return out, nil
}

func (m *memStore) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.attempts[id]; ok && a.Status == model.AttemptStatusInProgress {
		a.LastActivityAt = at
		m.attempts[id] = a
	}
	return nil
}

func (m *memStore) MarkSubmitted(_ context.Context, a *model.Attempt) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.attempts[a.ID]
	if !ok || stored.Status != model.AttemptStatusInProgress {
		return false, nil
	}
	stored.Status = model.AttemptStatusSubmitted
	stored.SubmittedAt = a.SubmittedAt
	stored.SubmitTrigger = a.SubmitTrigger
	stored.TimeSpentSeconds = a.TimeSpentSeconds
	stored.Answers = maps.Clone(a.Answers)
	m.attempts[a.ID] = stored
	return true, nil
}

func (m *memStore) SaveScores(_ context.Context, a *model.Attempt, results []model.QuestionAttempt, award *model.PointAward) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.attempts[a.ID]
	if !ok {
		return false, pgx.ErrNoRows
	}
	switch stored.Status {
	case model.AttemptStatusSubmitted, model.AttemptStatusPendingManualGrading, model.AttemptStatusGraded:
	default:
		return false, errors.New("attempt not gradable")
	}

	m.results[a.ID] = slices.Clone(results)
	stored.Status = a.Status
	stored.EarnedPoints = a.EarnedPoints
	stored.ScorePercent = a.ScorePercent
	stored.Passed = a.Passed
	stored.GradedAt = a.GradedAt
	m.attempts[a.ID] = stored

	if award == nil {
		return false, nil
	}
	for _, existing := range m.awards {
		if existing.UserID == award.UserID && existing.AssessmentID == award.AssessmentID {
			return false, nil
		}
	}
	award.ID = uuid.New()
	m.awards = append(m.awards, *award)
	return true, nil
}

func (m *memStore) ListQuestionAttempts(_ context.Context, attemptID uuid.UUID) ([]model.QuestionAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.results[attemptID]), nil
}

func (m *memStore) Abandon(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok || a.Status != model.AttemptStatusInProgress {
		return false, nil
	}
	a.Status = model.AttemptStatusAbandoned
	m.attempts[id] = a
	return true, nil
}

func (m *memStore) ListPending(_ context.Context, f model.GradingQueueFilter) ([]model.PendingAttempt, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PendingAttempt
	for _, a := range m.attempts {
		if a.Status != model.AttemptStatusPendingManualGrading {
			continue
		}
		if f.InstructorID != 0 && m.instructorOf[a.AssessmentID] != f.InstructorID {
			continue
		}
		out = append(out, model.PendingAttempt{AttemptID: a.ID, AssessmentID: a.AssessmentID, UserID: a.UserID})
	}
	return out, int64(len(out)), nil
}

func (m *memStore) listWhere(limit int, keep func(model.Attempt) bool) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, a := range m.attempts {
		if keep(a) && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids
}

func (m *memStore) ListExpired(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return m.listWhere(limit, func(a model.Attempt) bool {
		return a.Status == model.AttemptStatusInProgress && a.DeadlineAt != nil && a.DeadlineAt.Before(now)
	}), nil
}

func (m *memStore) ListStaleUntimed(_ context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	return m.listWhere(limit, func(a model.Attempt) bool {
		return a.Status == model.AttemptStatusInProgress && a.DeadlineAt == nil && a.LastActivityAt.Before(cutoff)
	}), nil
}

func (m *memStore) ListStuckSubmitted(_ context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	return m.listWhere(limit, func(a model.Attempt) bool {
		return a.Status == model.AttemptStatusSubmitted && a.SubmittedAt != nil && a.SubmittedAt.Before(cutoff)
	}), nil
}

func (m *memStore) ListUnpublished(_ context.Context, _ time.Time, limit int) ([]model.PointAward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PointAward
	for _, a := range m.awards {
		if a.PublishedAt == nil && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.awards {
		if slices.Contains(ids, m.awards[i].ID) && m.awards[i].PublishedAt == nil {
			t := at
			m.awards[i].PublishedAt = &t
		}
	}
	return nil
}

func (m *memStore) stored(id uuid.UUID) model.Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAttempt(m.attempts[id])
}

// ─── Answer buffer ──────────────────────────────────────────────────

type memBuffer struct {
	mu      sync.Mutex
	answers map[uuid.UUID]model.Answers
}

func newMemBuffer() *memBuffer {
	return &memBuffer{answers: make(map[uuid.UUID]model.Answers)}
}

func (b *memBuffer) Save(_ context.Context, attemptID, questionID uuid.UUID, value json.RawMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.answers[attemptID] == nil {
		b.answers[attemptID] = make(model.Answers)
	}
	b.answers[attemptID][questionID] = value
	return nil
}

func (b *memBuffer) Load(_ context.Context, attemptID uuid.UUID) (model.Answers, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := maps.Clone(b.answers[attemptID])
	if out == nil {
		out = make(model.Answers)
	}
	return out, nil
}

func (b *memBuffer) Clear(_ context.Context, attemptID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.answers, attemptID)
	return nil
}

// ─── Assessment source ──────────────────────────────────────────────

type memSource struct {
	mu          sync.Mutex
	assessments map[uuid.UUID]*model.Assessment
}

func (s *memSource) Get(_ context.Context, id uuid.UUID) (*model.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assessments[id]
	if !ok {
		return nil, ErrAssessmentNotFound
	}
	c := *a
	c.Questions = slices.Clone(a.Questions)
	return &c, nil
}

func (s *memSource) edit(id uuid.UUID, fn func(*model.Assessment)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.assessments[id])
}

// ─── Ledger ─────────────────────────────────────────────────────────

type memLedger struct {
	mu     sync.Mutex
	events []model.PointAwardEvent
	err    error
}

func (l *memLedger) Publish(_ context.Context, e model.PointAwardEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.events = append(l.events, e)
	return nil
}

func (l *memLedger) sent() []model.PointAwardEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

// ─── Harness ────────────────────────────────────────────────────────

const firstAttemptBonus = 10

type harness struct {
	store     *memStore
	buffer    *memBuffer
	source    *memSource
	ledger    *memLedger
	clock     *testClock
	publisher *PointsPublisher
	attempts  *AttemptService
	grading   *GradingService
}

func newHarness(t *testing.T, assessments ...*model.Assessment) *harness {
	t.Helper()

	h := &harness{
		store:  newMemStore(),
		buffer: newMemBuffer(),
		source: &memSource{assessments: make(map[uuid.UUID]*model.Assessment)},
		ledger: &memLedger{},
		clock:  newTestClock(),
	}
	for _, a := range assessments {
		h.source.assessments[a.ID] = a
		h.store.instructorOf[a.ID] = a.InstructorID
	}

	log := zerolog.Nop()
	locker := lock.NewLocalLocker()

	h.publisher = NewPointsPublisher(h.ledger, h.store, firstAttemptBonus, log)
	h.publisher.now = h.clock.Now

	h.attempts = NewAttemptService(h.store, h.source, h.buffer, locker, h.publisher, 24*time.Hour, log)
	h.attempts.now = h.clock.Now
	h.attempts.fin.now = h.clock.Now

	h.grading = NewGradingService(h.store, h.source, locker, h.publisher, log)
	h.grading.now = h.clock.Now
	h.grading.fin.now = h.clock.Now

	return h
}

// ─── Fixtures ───────────────────────────────────────────────────────

const (
	learnerID    = 42
	instructorID = 7
)

func intPtr(n int) *int { return &n }

func mcQuestion(points int, correct string) model.Question {
	return model.Question{
		ID:             uuid.New(),
		Type:           model.QuestionTypeMultipleChoice,
		Prompt:         "Pick one",
		Points:         points,
		Options:        []string{"a", "b", "c", "d"},
		CorrectAnswers: json.RawMessage(correct),
	}
}

func tfQuestion(points int, correct bool) model.Question {
	key, _ := json.Marshal(correct)
	return model.Question{
		ID:             uuid.New(),
		Type:           model.QuestionTypeTrueFalse,
		Prompt:         "True or false",
		Points:         points,
		CorrectAnswers: key,
	}
}

func essayQuestion(points int) model.Question {
	return model.Question{
		ID:     uuid.New(),
		Type:   model.QuestionTypeEssay,
		Prompt: "Discuss",
		Points: points,
	}
}

func newAssessment(questions ...model.Question) *model.Assessment {
	for i := range questions {
		questions[i].OrderNum = i + 1
	}
	return &model.Assessment{
		ID:                  uuid.New(),
		CourseID:            uuid.New(),
		InstructorID:        instructorID,
		Title:               "Unit quiz",
		PassingScorePercent: 60,
		ShowResults:         true,
		PointsReward:        50,
		Questions:           questions,
	}
}
