package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"redlight-quiz/internal/domain"
	"redlight-quiz/internal/score"
	"redlight-quiz/internal/store"
)

type State int

const (
	StateInitializing State = iota
	StateDisqualifiedPre
	StateActive
	StateDisqualifiedDuring
	StateTimedOut
	StateCompleted
)

var stateToString = map[State]string{
	StateInitializing:       "initializing",
	StateDisqualifiedPre:    "disqualified_pre",
	StateActive:             "active",
	StateDisqualifiedDuring: "disqualified",
	StateTimedOut:           "timed_out",
	StateCompleted:          "completed",
}

func (s State) String() string {
	if str, ok := stateToString[s]; ok {
		return str
	}
	return "unknown"
}

// QuestionSource loads the question bank (from cache/backing store).
type QuestionSource interface {
	Questions(ctx context.Context) ([]domain.Question, error)
}

// Config carries a session's collaborators and tuning knobs.
type Config struct {
	Store        store.RecordStore
	Questions    QuestionSource
	Input        InputSource
	Light        LightReader // defaults to the store-backed accessor
	Duration     time.Duration
	PollInterval time.Duration
	Clock        func() time.Time
}

// Snapshot is the player-facing view of the session state pushed to
// subscribers after every change.
type Snapshot struct {
	State         string   `json:"state"`
	QuestionIndex int      `json:"questionIndex"`
	QuestionCount int      `json:"questionCount"`
	Prompt        string   `json:"prompt,omitempty"`
	Options       []string `json:"options,omitempty"`
	Selected      *int     `json:"selected,omitempty"`
	Score         int      `json:"score"`
	TimeRemaining int      `json:"timeRemaining"`
	LightSafe     bool     `json:"lightSafe"`
	Eliminated    bool     `json:"eliminated"`
	Submitted     bool     `json:"submitted"`
}

// Session is the per-player quiz state machine. It exclusively owns its
// local state; the remote store is only a mirror that may lag behind.
//
// Multiple goroutines (countdown ticker, light poller, cheat monitor,
// transport reader) invoke methods on a Session simultaneously.
type Session struct {
	identity domain.Identity
	store    store.RecordStore
	source   QuestionSource
	monitor  *cheatMonitor
	poller   *Poller
	duration time.Duration
	clock    func() time.Time

	mu            sync.Mutex
	state         State
	questions     []domain.Question
	responses     []domain.Response
	currentIndex  int
	selected      *int
	scoreTotal    int
	timeRemaining int
	lightSafe     bool
	disqualified  bool
	submitted     bool
	cancel        context.CancelFunc
	subscribers   map[chan Snapshot]struct{}
	done          chan struct{}
}

// New builds a session for an authenticated identity. Nothing runs until
// Start is called.
func New(identity domain.Identity, cfg Config) *Session {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	duration := cfg.Duration
	if duration <= 0 {
		duration = 10 * time.Minute
	}
	light := cfg.Light
	if light == nil {
		light = store.NewLightAccessor(cfg.Store)
	}
	s := &Session{
		identity:    identity,
		store:       cfg.Store,
		source:      cfg.Questions,
		duration:    duration,
		clock:       clock,
		state:       StateInitializing,
		subscribers: make(map[chan Snapshot]struct{}),
		done:        make(chan struct{}),
	}
	s.monitor = newCheatMonitor(cfg.Input, s.tripCheat)
	s.poller = NewPoller(light, cfg.PollInterval, s.setLight)
	return s
}

// Start runs the attempt gate and, if the player is eligible, loads the
// question bank and spawns the countdown and light-poll tasks. A missing
// identity or a failed eligibility read fails closed: the session never
// reaches the active state.
func (s *Session) Start(ctx context.Context) error {
	if s.identity.UserID == "" {
		return domain.ErrNoIdentity
	}

	player, err := store.GetPlayer(ctx, s.store, s.identity.UserID)
	if err != nil {
		log.Printf("eligibility read failed for %s: %v", s.identity.UserID, err)
		return fmt.Errorf("fetch eligibility: %w", err)
	}

	if !player.Eligible() {
		s.mu.Lock()
		s.disqualified = true
		payload, ok := s.finishLocked(StateDisqualifiedPre)
		s.mu.Unlock()
		if ok {
			s.persist(payload)
		}
		return nil
	}

	// Best-effort: the local transition to active stands even if the
	// remote attempted mark fails.
	if _, err := s.store.Update(ctx, store.CollectionPlayers, s.identity.UserID, store.Fields{"attempted": true}); err != nil {
		log.Printf("mark attempted failed for %s: %v", s.identity.UserID, err)
	}

	questions, err := s.source.Questions(ctx)
	if err != nil {
		log.Printf("question load failed for %s: %v", s.identity.UserID, err)
		return fmt.Errorf("load questions: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.questions = questions
	s.responses = make([]domain.Response, len(questions))
	s.timeRemaining = int(s.duration / time.Second)
	s.state = StateActive
	s.syncMonitorLocked()
	s.broadcastLocked()
	s.mu.Unlock()

	go s.runCountdown(runCtx)
	go s.poller.Run(runCtx)
	return nil
}

// SelectOption marks a pending choice on the current question. Ignored
// while the light is unsafe, after disqualification, or after submission.
func (s *Session) SelectOption(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive || !s.lightSafe || s.disqualified || s.submitted {
		return
	}
	if s.currentIndex >= len(s.questions) {
		return
	}
	if i < 0 || i >= len(s.questions[s.currentIndex].Options) {
		return
	}
	sel := i
	s.selected = &sel
	s.broadcastLocked()
}

// Advance confirms the pending selection as the current question's response
// and moves forward. At the last question it triggers submission instead.
func (s *Session) Advance() {
	s.mu.Lock()
	if s.state != StateActive || s.disqualified || s.submitted {
		s.mu.Unlock()
		return
	}
	s.flushPendingLocked()
	if s.currentIndex < len(s.questions)-1 {
		s.currentIndex++
		s.selected = nil
		s.broadcastLocked()
		s.mu.Unlock()
		return
	}
	payload, ok := s.finishLocked(StateCompleted)
	s.mu.Unlock()
	if ok {
		s.persist(payload)
	}
}

// Tick decrements the countdown by one second. At zero the pending
// unconfirmed selection is flushed into the payload and the session
// submits as timed out.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.state != StateActive || s.submitted {
		s.mu.Unlock()
		return
	}
	s.timeRemaining--
	if s.timeRemaining > 0 {
		s.broadcastLocked()
		s.mu.Unlock()
		return
	}
	s.timeRemaining = 0
	s.flushPendingLocked()
	payload, ok := s.finishLocked(StateTimedOut)
	s.mu.Unlock()
	if ok {
		s.persist(payload)
	}
}

// tripCheat is invoked by the cheat monitor on input during a red light.
// The disqualified flag makes it fire at most once; the pending unsaved
// selection is discarded so the last confirmed answer stands.
func (s *Session) tripCheat() {
	s.mu.Lock()
	if s.state != StateActive || s.lightSafe || s.disqualified || s.submitted {
		s.mu.Unlock()
		return
	}
	s.disqualified = true
	s.selected = nil
	payload, ok := s.finishLocked(StateDisqualifiedDuring)
	s.mu.Unlock()

	if _, err := s.store.Update(context.Background(), store.CollectionPlayers, s.identity.UserID, store.Fields{"moved": true}); err != nil {
		log.Printf("mark moved failed for %s: %v", s.identity.UserID, err)
	}
	if ok {
		s.persist(payload)
	}
}

// setLight receives readings from the poller and re-evaluates whether the
// cheat monitor should be listening.
func (s *Session) setLight(safe bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted {
		return
	}
	changed := s.lightSafe != safe
	s.lightSafe = safe
	s.syncMonitorLocked()
	if changed {
		s.broadcastLocked()
	}
}

// flushPendingLocked records the pending selection as a confirmed response
// and applies the incremental scoring rule: one point iff the selected
// option text equals the correct option's text. Comparing text rather than
// position keeps the running total in agreement with the pure recount over
// the response sequence, which only carries text.
func (s *Session) flushPendingLocked() {
	if s.selected == nil || s.currentIndex >= len(s.questions) {
		return
	}
	q := s.questions[s.currentIndex]
	idx := *s.selected
	text := ""
	if idx >= 0 && idx < len(q.Options) {
		text = q.Options[idx]
	}
	s.responses[s.currentIndex] = domain.Response{QuestionID: q.ID, SelectedOption: text}
	if q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options) && text == q.Options[q.CorrectIndex] {
		s.scoreTotal++
	}
	s.selected = nil
}

// finishLocked performs the single idempotent transition into the
// submitted overlay: it encodes the payload exactly once, cancels the
// periodic tasks, and closes the done channel. Later triggers (a timer
// tick racing a cheat trip) see submitted=true and become no-ops.
func (s *Session) finishLocked(terminal State) (domain.Submission, bool) {
	if s.submitted {
		return domain.Submission{}, false
	}
	s.state = terminal
	s.submitted = true
	payload := score.EncodeSubmission(s.identity.UserID, s.responses, s.scoreTotal, s.disqualified, s.clock())
	if s.cancel != nil {
		s.cancel()
	}
	s.monitor.disarm()
	s.broadcastLocked()
	return payload, true
}

// persist writes the submission, mirrors the final score onto the player
// record, and closes the done channel. Both writes are best-effort: a
// failure is logged and the local submitted flag stays set, so a network
// failure at final submit can silently lose a result.
func (s *Session) persist(sub domain.Submission) {
	ctx := context.Background()
	if _, err := s.store.Create(ctx, store.CollectionResponses, store.SubmissionFields(sub)); err != nil {
		log.Printf("submission write failed for %s: %v", sub.PlayerID, err)
	}
	if _, err := s.store.Update(ctx, store.CollectionPlayers, sub.PlayerID, store.Fields{"score": sub.Score}); err != nil {
		log.Printf("score propagation failed for %s: %v", sub.PlayerID, err)
	}
	close(s.done)
}

func (s *Session) syncMonitorLocked() {
	if s.state == StateActive && !s.lightSafe && !s.disqualified && !s.submitted {
		s.monitor.arm()
	} else {
		s.monitor.disarm()
	}
}

func (s *Session) runCountdown(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Stop tears the session down without submitting, cancelling all periodic
// tasks and the monitor subscription.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.monitor.disarm()
}

// Done is closed once the session has submitted and the submission write
// has been attempted.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State returns the current machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submitted reports whether the terminal submission transition has run.
func (s *Session) Submitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}

// Subscribe returns a channel receiving state snapshots, starting with the
// current one. The caller must invoke the cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Snapshot returns the current player-facing view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so a slow consumer never blocks a transition.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:         s.state.String(),
		QuestionIndex: s.currentIndex,
		QuestionCount: len(s.questions),
		Score:         s.scoreTotal,
		TimeRemaining: s.timeRemaining,
		LightSafe:     s.lightSafe,
		Eliminated:    s.disqualified,
		Submitted:     s.submitted,
	}
	if s.state == StateActive && s.currentIndex < len(s.questions) {
		q := s.questions[s.currentIndex]
		snap.Prompt = q.Prompt
		snap.Options = append([]string(nil), q.Options...)
	}
	if s.selected != nil {
		sel := *s.selected
		snap.Selected = &sel
	}
	return snap
}
