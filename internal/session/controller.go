// Package session drives one quiz attempt: the ordered walk through the
// session's questions, the local answers, the countdown and the reports to
// the quiz service.
//
// A Controller is safe for concurrent use. One mutex guards its state and
// no network call is made while holding it. At most one answer report and
// at most one finish are in flight at any time, and a session finishes at
// most once.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ekosmy/portfolio/internal/logger"
	"github.com/ekosmy/portfolio/internal/quiz"
	"github.com/ekosmy/portfolio/internal/quizapi"
)

// API is the part of the quiz service a controller needs.
type API interface {
	GetQuiz(ctx context.Context, id string) (quiz.Quiz, error)
	SessionQuestions(ctx context.Context, sessionID string) ([]quiz.Question, error)
	SubmitAnswer(ctx context.Context, sessionID string, req quizapi.SubmitRequest) (bool, error)
	FinishSession(ctx context.Context, sessionID string) (quiz.Result, error)
}

// Starter can also open new sessions.
type Starter interface {
	API
	StartSession(ctx context.Context, quizID string) (string, error)
}

type State int

const (
	Loading State = iota
	InProgress
	Submitting
	Expired
	Finished
)

var stateNames = [...]string{"loading", "in_progress", "submitting", "expired", "finished"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// saveEveryTicks bounds how often a running countdown is persisted.
const saveEveryTicks = 5

type Controller struct {
	api       API
	sessionID string
	quizID    string

	clock    Clock
	store    ProgressStore
	events   EventSink
	timerCtx context.Context

	mu         sync.Mutex
	state      State
	quiz       quiz.Quiz
	questions  []quiz.Question
	index      int
	answers    map[int]quiz.Answer
	reported   map[int]quiz.Answer
	timed      bool
	timeLeft   int
	timer      Timer
	ticks      int
	submitting bool
	finishing  bool
	result     *quiz.Result
	lastErr    error
	closed     bool
	finishedAt time.Time

	obsSeq    int
	observers map[int]func(Snapshot)
}

type Option func(*Controller)

func WithClock(c Clock) Option { return func(ct *Controller) { ct.clock = c } }

// WithProgressStore persists position, answers and time left so a session
// can be resumed.
func WithProgressStore(s ProgressStore) Option { return func(ct *Controller) { ct.store = s } }

func WithEventSink(s EventSink) Option { return func(ct *Controller) { ct.events = s } }

// WithTimerContext is the context used for calls the countdown makes on its
// own, like the finish at expiry. It should carry the caller's credentials.
func WithTimerContext(ctx context.Context) Option {
	return func(ct *Controller) { ct.timerCtx = ctx }
}

func WithObserver(f func(Snapshot)) Option {
	return func(ct *Controller) { ct.addObserver(f) }
}

// New returns a controller in the Loading state. quizID may be empty when
// a progress store knows it.
func New(api API, sessionID, quizID string, opts ...Option) *Controller {
	c := &Controller{
		api:       api,
		sessionID: sessionID,
		quizID:    quizID,
		clock:     realClock{},
		timerCtx:  context.Background(),
		answers:   map[int]quiz.Answer{},
		reported:  map[int]quiz.Answer{},
		observers: map[int]func(Snapshot){},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start opens a new session for quizID and loads it. A non-nil controller
// is returned whenever the session was created, even if loading failed.
func Start(ctx context.Context, api Starter, quizID string, opts ...Option) (*Controller, error) {
	sid, err := api.StartSession(ctx, quizID)
	if err != nil {
		return nil, &LoadError{Op: "start session", Err: err}
	}
	c := New(api, sid, quizID, opts...)
	return c, c.Load(ctx)
}

func (c *Controller) SessionID() string { return c.sessionID }

func (c *Controller) QuizID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quizID
}

// Load fetches the quiz and its questions, restores saved progress and
// starts the countdown. On failure the controller stays in Loading and
// Load may be called again.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.state != Loading:
		c.mu.Unlock()
		return nil
	}
	quizID := c.quizID
	c.mu.Unlock()

	var (
		saved    Progress
		resuming bool
	)
	if c.store != nil {
		p, ok, err := c.store.Load(ctx, c.sessionID)
		if err != nil {
			logger.Warnf("session %s: load progress: %v", c.sessionID, err)
		} else if ok && (quizID == "" || p.QuizID == quizID) {
			saved, resuming = p, true
			quizID = p.QuizID
		}
	}
	if quizID == "" {
		return c.loadFailed(&LoadError{Op: "quiz", Err: ErrUnknownQuiz})
	}

	qz, err := c.api.GetQuiz(ctx, quizID)
	if err != nil {
		return c.loadFailed(&LoadError{Op: "quiz details", Err: err})
	}
	qs, err := c.api.SessionQuestions(ctx, c.sessionID)
	if err != nil {
		return c.loadFailed(&LoadError{Op: "questions", Err: err})
	}
	if len(qs) == 0 {
		return c.loadFailed(&LoadError{Op: "questions", Err: ErrNoQuestions})
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != Loading {
		c.mu.Unlock()
		return nil
	}
	c.quizID, c.quiz, c.questions = quizID, qz, qs
	c.timeLeft = qz.TimeLimitSeconds()
	c.timed = c.timeLeft > 0
	if resuming {
		c.restoreLocked(saved)
	}
	c.lastErr = nil

	if c.timed && c.timeLeft <= 0 {
		c.state, c.finishing = Expired, true
		c.mu.Unlock()
		c.changed()
		c.record(ctx, EventSessionExpired, nil)
		_ = c.doFinish(ctx)
		return nil
	}
	c.state = InProgress
	c.armLocked()
	p := c.progressLocked()
	c.mu.Unlock()

	c.changed()
	c.persist(ctx, p)
	if !resuming {
		c.record(ctx, EventSessionStarted, map[string]any{"quiz_id": quizID, "questions": len(qs), "time_limit": qz.TimeLimitSeconds()})
	}
	return nil
}

func (c *Controller) loadFailed(err error) error {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.changed()
	return err
}

// restoreLocked applies saved progress, dropping anything that no longer
// fits the questions.
func (c *Controller) restoreLocked(p Progress) {
	c.index = p.Index
	if c.index < 0 {
		c.index = 0
	}
	if c.index >= len(c.questions) {
		c.index = len(c.questions) - 1
	}
	keep := func(src map[int]quiz.Answer, dst map[int]quiz.Answer) {
		for i, a := range src {
			if i < 0 || i >= len(c.questions) || quiz.Validate(c.questions[i], a) != nil {
				continue
			}
			dst[i] = a.Copy()
		}
	}
	keep(p.Answers, c.answers)
	keep(p.Reported, c.reported)
	if c.timed && p.TimeLeft != nil && *p.TimeLeft < c.timeLeft {
		c.timeLeft = *p.TimeLeft
		if c.timeLeft < 0 {
			c.timeLeft = 0
		}
	}
}

// editableLocked returns the error for changing answers or position in the
// current state, or nil.
func (c *Controller) editableLocked() error {
	if c.closed {
		return ErrClosed
	}
	switch c.state {
	case Loading:
		return ErrNotLoaded
	case Expired:
		return ErrExpired
	case Finished:
		return ErrFinished
	case Submitting:
		return ErrBusy
	}
	return nil
}

// Select clicks optionID on the current question. Single choice replaces
// the answer, multi choice toggles the option.
func (c *Controller) Select(optionID string) error {
	return c.edit(func(q quiz.Question, prev quiz.Answer) (quiz.Answer, error) {
		return quiz.Select(q, prev, optionID)
	})
}

// SetText records the free-text answer of the current question.
func (c *Controller) SetText(text string) error {
	return c.edit(func(q quiz.Question, _ quiz.Answer) (quiz.Answer, error) {
		return quiz.Text(q, text)
	})
}

func (c *Controller) edit(apply func(quiz.Question, quiz.Answer) (quiz.Answer, error)) error {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	a, err := apply(c.questions[c.index], c.answers[c.index])
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.answers[c.index] = a
	c.lastErr = nil
	c.mu.Unlock()
	c.changed()
	return nil
}

// Next reports the current answer and moves forward. On the last question
// it finishes the session instead. A report identical to the last one
// accepted for the same position is not sent again.
func (c *Controller) Next(ctx context.Context) error {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.finishing {
		c.mu.Unlock()
		return ErrBusy
	}
	idx := c.index
	a, ok := c.answers[idx]
	if !ok {
		c.lastErr = ErrAnswerRequired
		c.mu.Unlock()
		c.changed()
		return ErrAnswerRequired
	}
	last := idx == len(c.questions)-1
	if prev, sent := c.reported[idx]; sent && prev.Equal(a) {
		if last {
			c.mu.Unlock()
			return c.Finish(ctx)
		}
		c.index++
		c.lastErr = nil
		p := c.progressLocked()
		c.mu.Unlock()
		c.changed()
		c.persist(ctx, p)
		return nil
	}
	a = a.Copy()
	c.submitting, c.state, c.lastErr = true, Submitting, nil
	c.mu.Unlock()
	c.changed()

	_, err := c.api.SubmitAnswer(ctx, c.sessionID, quizapi.SubmitRequest{QuestionIndex: idx, Answer: a})

	c.mu.Lock()
	c.submitting = false
	c.settleLocked()
	if err != nil {
		serr := &SubmitError{Index: idx, Err: err}
		if c.state == InProgress {
			c.lastErr = serr
		}
		c.mu.Unlock()
		c.changed()
		return serr
	}
	c.reported[idx] = a
	late := c.lateErrLocked()
	if late == nil && !last {
		c.index = idx + 1
	}
	p := c.progressLocked()
	c.mu.Unlock()

	c.changed()
	c.record(ctx, EventAnswerSubmitted, map[string]any{"index": idx, "answer": a})
	if late != nil {
		// the report landed after time ran out or the session ended
		return late
	}
	c.persist(ctx, p)
	if last {
		return c.Finish(ctx)
	}
	return nil
}

func (c *Controller) lateErrLocked() error {
	switch {
	case c.state == Finished:
		return ErrFinished
	case c.state == Expired:
		return ErrExpired
	case c.closed:
		return ErrClosed
	}
	return nil
}

// Previous steps back one question. It never sends anything.
func (c *Controller) Previous() error {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.index == 0 {
		c.mu.Unlock()
		return nil
	}
	c.index--
	c.lastErr = nil
	p := c.progressLocked()
	c.mu.Unlock()
	c.changed()
	c.persist(context.Background(), p)
	return nil
}

// Finish ends the session. It succeeds at most once. A failed finish is
// not retried; the caller may call Finish again.
func (c *Controller) Finish(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.state == Loading:
		c.mu.Unlock()
		return ErrNotLoaded
	case c.state == Finished:
		c.mu.Unlock()
		return ErrFinished
	case c.finishing, c.submitting:
		c.mu.Unlock()
		return ErrBusy
	}
	c.finishing = true
	c.lastErr = nil
	if c.state != Expired {
		c.state = Submitting
	}
	c.mu.Unlock()
	c.changed()
	return c.doFinish(ctx)
}

// doFinish runs with c.finishing set by the caller.
func (c *Controller) doFinish(ctx context.Context) error {
	res, err := c.api.FinishSession(ctx, c.sessionID)

	c.mu.Lock()
	c.finishing = false
	if err != nil {
		c.lastErr = err
		c.settleLocked()
		c.armLocked()
		c.mu.Unlock()
		c.changed()
		return err
	}
	c.result = &res
	c.state = Finished
	c.finishedAt = c.clock.Now()
	c.lastErr = nil
	c.stopTimerLocked()
	c.mu.Unlock()

	c.changed()
	if c.store != nil {
		if err := c.store.Delete(ctx, c.sessionID); err != nil {
			logger.Warnf("session %s: delete progress: %v", c.sessionID, err)
		}
	}
	c.record(ctx, EventSessionFinished, res)
	return nil
}

// settleLocked leaves Submitting once nothing is in flight.
func (c *Controller) settleLocked() {
	if c.state == Submitting && !c.submitting && !c.finishing {
		c.state = InProgress
	}
}

func (c *Controller) armLocked() {
	if c.closed || !c.timed || c.timer != nil || c.timeLeft <= 0 {
		return
	}
	if c.state != InProgress && c.state != Submitting {
		return
	}
	c.timer = c.clock.AfterFunc(time.Second, c.tick)
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) tick() {
	c.mu.Lock()
	c.timer = nil
	if c.closed || (c.state != InProgress && c.state != Submitting) {
		c.mu.Unlock()
		return
	}
	c.timeLeft--
	if c.timeLeft > 0 {
		c.ticks++
		save := c.ticks >= saveEveryTicks
		if save {
			c.ticks = 0
		}
		c.armLocked()
		p := c.progressLocked()
		c.mu.Unlock()
		c.changed()
		if save {
			c.persist(c.timerCtx, p)
		}
		return
	}

	c.timeLeft = 0
	c.state = Expired
	startFinish := !c.finishing
	c.finishing = true
	c.mu.Unlock()

	c.changed()
	c.record(c.timerCtx, EventSessionExpired, nil)
	if startFinish {
		if err := c.doFinish(c.timerCtx); err != nil {
			logger.Warnf("session %s: finish at expiry: %v", c.sessionID, err)
		}
	}
}

// Close stops the countdown and saves unfinished progress. Nothing fires
// afterwards and further calls return ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	var p *Progress
	if c.state == InProgress || c.state == Submitting {
		pp := c.progressLocked()
		p = &pp
	}
	c.observers = map[int]func(Snapshot){}
	c.mu.Unlock()
	if p != nil {
		c.persist(c.timerCtx, *p)
	}
}

// OnChange registers f to receive a snapshot after every transition and
// countdown tick. Calls happen outside the controller's lock.
func (c *Controller) OnChange(f func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	id := c.addObserver(f)
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Controller) addObserver(f func(Snapshot)) int {
	c.obsSeq++
	c.observers[c.obsSeq] = f
	return c.obsSeq
}

func (c *Controller) changed() {
	c.mu.Lock()
	if len(c.observers) == 0 {
		c.mu.Unlock()
		return
	}
	s := c.snapshotLocked()
	fs := make([]func(Snapshot), 0, len(c.observers))
	for i := 1; i <= c.obsSeq; i++ {
		if f, ok := c.observers[i]; ok {
			fs = append(fs, f)
		}
	}
	c.mu.Unlock()
	for _, f := range fs {
		f(s)
	}
}

// Answered reports whether position i has an answer recorded.
func (c *Controller) Answered(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.answers[i]
	return ok
}

// CanAdvance is false exactly when the current question has no answer.
func (c *Controller) CanAdvance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.answers[c.index]
	return ok
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FinishedAt is zero until the session finished.
func (c *Controller) FinishedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finishedAt
}

func (c *Controller) Result() (quiz.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return quiz.Result{}, false
	}
	return *c.result, true
}

func (c *Controller) progressLocked() Progress {
	p := Progress{
		SessionID: c.sessionID,
		QuizID:    c.quizID,
		Index:     c.index,
		Answers:   quiz.Clone(c.answers),
		Reported:  quiz.Clone(c.reported),
		UpdatedAt: c.clock.Now(),
	}
	if c.timed {
		t := c.timeLeft
		p.TimeLeft = &t
	}
	return p
}

func (c *Controller) persist(ctx context.Context, p Progress) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, p); err != nil {
		logger.Warnf("session %s: save progress: %v", c.sessionID, err)
	}
}

func (c *Controller) record(ctx context.Context, typ string, data any) {
	if c.events == nil {
		return
	}
	e := Event{Type: typ, SessionID: c.sessionID, Data: data, At: c.clock.Now()}
	if err := c.events.Record(ctx, e); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warnf("session %s: record %s: %v", c.sessionID, typ, err)
	}
}
