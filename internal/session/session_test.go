package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"redlight-quiz/internal/domain"
	"redlight-quiz/internal/infra/memory"
	"redlight-quiz/internal/score"
	"redlight-quiz/internal/store"
)

func TestStartRequiresIdentity(t *testing.T) {
	fx := newFixture(t, store.Fields{}, false)
	sess := New(domain.Identity{}, fx.config())

	if err := sess.Start(context.Background()); err != domain.ErrNoIdentity {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
}

func TestStartFailsClosedOnEligibilityReadError(t *testing.T) {
	fx := newFixture(t, store.Fields{}, false)
	sess := New(domain.Identity{UserID: "ghost", Role: domain.RolePlayer}, fx.config())

	if err := sess.Start(context.Background()); err == nil {
		t.Fatalf("expected error for missing player record")
	}
	if sess.State() == StateActive {
		t.Fatalf("session must not activate on a failed eligibility read")
	}
}

func TestAttemptedPlayerIsPreDisqualified(t *testing.T) {
	fx := newFixture(t, store.Fields{"attempted": true}, true)
	sess := fx.start(t)

	<-sess.Done()
	if sess.State() != StateDisqualifiedPre {
		t.Fatalf("expected pre-disqualification, got %v", sess.State())
	}
	if fx.source.calls != 0 {
		t.Fatalf("expected zero question loads, got %d", fx.source.calls)
	}

	sub := fx.submission(t)
	if !sub.Eliminated {
		t.Fatalf("expected eliminated submission")
	}
	if len(sub.Answers) != 0 {
		t.Fatalf("expected empty answers, got %d", len(sub.Answers))
	}

	// State is frozen: answering is a no-op.
	sess.SelectOption(0)
	sess.Advance()
	if got := fx.store.creates("responses"); got != 1 {
		t.Fatalf("expected exactly one submission write, got %d", got)
	}
}

func TestMovedPlayerIsPreDisqualified(t *testing.T) {
	fx := newFixture(t, store.Fields{"moved": true}, true)
	sess := fx.start(t)

	<-sess.Done()
	if sess.State() != StateDisqualifiedPre {
		t.Fatalf("expected pre-disqualification, got %v", sess.State())
	}
	sub := fx.submission(t)
	if !sub.Eliminated || len(sub.Answers) != 0 || sub.Score != 0 {
		t.Fatalf("unexpected submission: %+v", sub)
	}
}

func TestEligibleStartMarksAttempted(t *testing.T) {
	fx := newFixture(t, store.Fields{}, true)
	sess := fx.start(t)
	defer sess.Stop()

	if sess.State() != StateActive {
		t.Fatalf("expected active state, got %v", sess.State())
	}
	player, err := store.GetPlayer(context.Background(), fx.store, "player1")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if !player.Attempted {
		t.Fatalf("expected attempted flag mirrored to store")
	}
}

func TestFullRunScoresTwoOfThree(t *testing.T) {
	// Correct indices are [0,1,0]; the player picks [0,1,1].
	fx := newFixture(t, store.Fields{}, true)
	sess := fx.start(t)
	fx.waitSafe(t, sess)

	sess.SelectOption(0)
	sess.Advance()
	sess.SelectOption(1)
	sess.Advance()
	sess.SelectOption(1)
	sess.Advance()

	<-sess.Done()
	if sess.State() != StateCompleted {
		t.Fatalf("expected completed, got %v", sess.State())
	}

	sub := fx.submission(t)
	if sub.Score != 2 {
		t.Fatalf("expected score 2, got %d", sub.Score)
	}
	if len(sub.Answers) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(sub.Answers))
	}
	if sub.Eliminated {
		t.Fatalf("expected eliminated=false")
	}
	if got := score.Compute(sess.questions, sess.responses); got != sub.Score {
		t.Fatalf("pure recount %d disagrees with incremental %d", got, sub.Score)
	}

	player, _ := store.GetPlayer(context.Background(), fx.store, "player1")
	if player.Score != 2 {
		t.Fatalf("expected final score on player record, got %d", player.Score)
	}
}

func TestIncrementalScoreMatchesRecountWithOmissions(t *testing.T) {
	fx := newFixture(t, store.Fields{}, true)
	sess := fx.start(t)
	fx.waitSafe(t, sess)

	sess.SelectOption(0)
	sess.Advance()
	sess.Advance() // second question left unanswered
	sess.SelectOption(2)
	sess.Advance()

	<-sess.Done()
	sub := fx.submission(t)
	if len(sub.Answers) != 2 {
		t.Fatalf("expected 2 confirmed answers, got %d", len(sub.Answers))
	}
	if got := score.Compute(sess.questions, sess.responses); got != sess.scoreTotal {
		t.Fatalf("recount %d != incremental %d", got, sess.scoreTotal)
	}
}

func TestDuplicateOptionTextsScoreConsistently(t *testing.T) {
	rs := memory.NewRecordStore()
	mustCreate(t, rs, store.CollectionPlayers, store.Fields{
		"id": "player1", "username": "alice", "role": domain.RolePlayer,
	})
	mustCreate(t, rs, store.CollectionQuestions, store.Fields{
		"id": "q1", "question": "pick red", "options": []string{"red", "red", "blue"}, "index": 1,
	})
	mustCreate(t, rs, store.CollectionState, store.Fields{"light": true})

	counting := &countingStore{RecordStore: rs}
	fx := &fixture{
		store:    counting,
		feed:     NewFeed(),
		source:   &countingSource{loader: store.NewQuestionLoader(counting)},
		light:    &fakeLight{value: true},
		duration: time.Hour,
	}
	sess := fx.start(t)
	fx.waitSafe(t, sess)

	// Index 0 carries the same text as the correct option at index 1.
	sess.SelectOption(0)
	sess.Advance()
	<-sess.Done()

	sub := fx.submission(t)
	if got := score.Compute(sess.questions, sess.responses); got != sub.Score {
		t.Fatalf("recount %d disagrees with incremental %d on duplicate texts", got, sub.Score)
	}
	if sub.Score != 1 {
		t.Fatalf("matching text must score regardless of position, got %d", sub.Score)
	}
}

func TestSelectIgnoredWhileUnsafe(t *testing.T) {
	fx := newFixture(t, store.Fields{}, false)
	sess := fx.start(t)
	defer sess.Stop()

	fx.waitPolled(t)
	sess.SelectOption(0)
	if snap := sess.Snapshot(); snap.Selected != nil {
		t.Fatalf("selection must be ignored while the light is red")
	}

	sess.setLight(true)
	sess.SelectOption(0)
	if snap := sess.Snapshot(); snap.Selected == nil || *snap.Selected != 0 {
		t.Fatalf("selection should apply once the light is green")
	}
}

func TestSelectOutOfRangeIgnored(t *testing.T) {
	fx := newFixture(t, store.Fields{}, true)
	sess := fx.start(t)
	defer sess.Stop()
	fx.waitSafe(t, sess)

	sess.SelectOption(-1)
	sess.SelectOption(99)
	if snap := sess.Snapshot(); snap.Selected != nil {
		t.Fatalf("out-of-range selections must be ignored")
	}
}

func TestRedLightInputDisqualifiesExactlyOnce(t *testing.T) {
	fx := newFixture(t, store.Fields{}, true)
	sess := fx.start(t)
	fx.waitSafe(t, sess)

	// A pending, unconfirmed selection must not survive disqualification.
	sess.SelectOption(0)
	sess.setLight(false)
	if !sess.monitor.armed() {
		t.Fatalf("monitor should listen while the light is red")
	}

	fx.feed.Publish(InputEvent{Kind: InputPointer})
	fx.feed.Publish(InputEvent{Kind: InputKey})

	<-sess.Done()
	if sess.State() != StateDisqualifiedDuring {
		t.Fatalf("expected disqualification, got %v", sess.State())
	}
	if got := fx.store.creates("responses"); got != 1 {
		t.Fatalf("expected a single submission write, got %d", got)
	}

	sub := fx.submission(t)
	if !sub.Eliminated {
		t.Fatalf("expected eliminated submission")
	}
	if len(sub.Answers) != 0 {
		t.Fatalf("pending selection should be discarded, got %d answers", len(sub.Answers))
	}

	player, _ := store.GetPlayer(context.Background(), fx.store, "player1")
	if !player.Moved {
		t.Fatalf("expected moved flag mirrored to store")
	}

	// Frozen after submission.
	sess.SelectOption(1)
	sess.Advance()
	if got := fx.store.creates("responses"); got != 1 {
		t.Fatalf("post-submission activity must not write again, got %d", got)
	}
}

func TestDisqualificationKeepsConfirmedAnswers(t *testing.T) {
	fx := newFixture(t, store.Fields{}, true)
	sess := fx.start(t)
	fx.waitSafe(t, sess)

	sess.SelectOption(0)
	sess.Advance() // confirmed
	sess.SelectOption(1)

	sess.setLight(false)
	fx.feed.Publish(InputEvent{Kind: InputPointer})

	<-sess.Done()
	sub := fx.submission(t)
	if len(sub.Answers) != 1 || sub.Answers[0].QuestionID != "q1" {
		t.Fatalf("expected only the confirmed q1 answer, got %+v", sub.Answers)
	}
}

func TestMonitorUnsubscribesOnGreen(t *testing.T) {
	fx := newFixture(t, store.Fields{}, true)
	sess := fx.start(t)
	defer sess.Stop()
	fx.waitSafe(t, sess)

	if sess.monitor.armed() {
		t.Fatalf("monitor must be idle while the light is green")
	}
	sess.setLight(false)
	if !sess.monitor.armed() {
		t.Fatalf("monitor should arm on red")
	}
	sess.setLight(true)
	if sess.monitor.armed() {
		t.Fatalf("monitor should disarm on green")
	}

	// Events while green are ignored entirely.
	fx.feed.Publish(InputEvent{Kind: InputPointer})
	if sess.Submitted() {
		t.Fatalf("green-light input must not disqualify")
	}
}

func TestTimerExpiryFlushesPendingSelection(t *testing.T) {
	fx := newFixture(t, store.Fields{}, true)
	fx.duration = 2 * time.Second
	sess := fx.start(t)
	fx.waitSafe(t, sess)

	sess.SelectOption(1) // unconfirmed, mid-question
	sess.Tick()
	sess.Tick()

	<-sess.Done()
	if sess.State() != StateTimedOut {
		t.Fatalf("expected timed out, got %v", sess.State())
	}
	sub := fx.submission(t)
	if len(sub.Answers) != 1 || sub.Answers[0].QuestionID != "q1" {
		t.Fatalf("pending selection must be flushed into the payload, got %+v", sub.Answers)
	}
	if sub.Score != 0 {
		t.Fatalf("option 1 on q1 is wrong, expected score 0, got %d", sub.Score)
	}
}

func TestCheatAndTimerRaceSubmitsOnce(t *testing.T) {
	fx := newFixture(t, store.Fields{}, true)
	fx.duration = time.Second
	sess := fx.start(t)
	fx.waitSafe(t, sess)

	sess.setLight(false)
	sess.tripCheat()
	sess.Tick() // fires in the same instant; must be a no-op

	<-sess.Done()
	if got := fx.store.creates("responses"); got != 1 {
		t.Fatalf("expected one submission write, got %d", got)
	}
	if !sess.Submitted() {
		t.Fatalf("expected a submitted session")
	}
}

func TestAdvancePastLastQuestionSubmitsOnce(t *testing.T) {
	fx := newFixture(t, store.Fields{}, true)
	sess := fx.start(t)
	fx.waitSafe(t, sess)

	sess.Advance()
	sess.Advance()
	sess.Advance()
	<-sess.Done()
	sess.Advance() // after completion

	if got := fx.store.creates("responses"); got != 1 {
		t.Fatalf("expected one submission write, got %d", got)
	}
}

func TestSubmissionWriteFailureKeepsSubmittedFlag(t *testing.T) {
	fx := newFixture(t, store.Fields{}, true)
	fx.store.failCreate = true
	sess := fx.start(t)
	fx.waitSafe(t, sess)

	sess.Advance()
	sess.Advance()
	sess.Advance()
	<-sess.Done()

	if !sess.Submitted() {
		t.Fatalf("submitted flag must stay set even when the write fails")
	}
}

func TestRegistryEnforcesSingleSession(t *testing.T) {
	reg := NewRegistry()
	fx := newFixture(t, store.Fields{}, false)
	sess := New(fx.identity(), fx.config())

	if err := reg.Add("player1", sess); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := reg.Add("player1", sess); err != domain.ErrSessionInProgress {
		t.Fatalf("expected ErrSessionInProgress, got %v", err)
	}
	reg.Remove("player1")
	if err := reg.Add("player1", sess); err != nil {
		t.Fatalf("re-add after remove: %v", err)
	}
}

// fixture

type fixture struct {
	store    *countingStore
	feed     *Feed
	source   *countingSource
	light    *fakeLight
	duration time.Duration
}

func newFixture(t *testing.T, playerOverrides store.Fields, lightOn bool) *fixture {
	t.Helper()
	rs := memory.NewRecordStore()

	player := store.Fields{
		"id": "player1", "username": "alice", "email": "alice@example.com",
		"role": domain.RolePlayer, "attempted": false, "moved": false, "score": 0,
	}
	for k, v := range playerOverrides {
		player[k] = v
	}
	mustCreate(t, rs, store.CollectionPlayers, player)

	mustCreate(t, rs, store.CollectionQuestions, store.Fields{
		"id": "q1", "question": "first", "options": []string{"red", "green", "blue"}, "index": 0,
	})
	mustCreate(t, rs, store.CollectionQuestions, store.Fields{
		"id": "q2", "question": "second", "options": []string{"red", "green", "blue"}, "index": 1,
	})
	mustCreate(t, rs, store.CollectionQuestions, store.Fields{
		"id": "q3", "question": "third", "options": []string{"red", "green", "blue"}, "index": 0,
	})
	mustCreate(t, rs, store.CollectionState, store.Fields{"light": lightOn})

	counting := &countingStore{RecordStore: rs}
	return &fixture{
		store:    counting,
		feed:     NewFeed(),
		source:   &countingSource{loader: store.NewQuestionLoader(counting)},
		light:    &fakeLight{value: lightOn},
		duration: time.Hour,
	}
}

func (f *fixture) identity() domain.Identity {
	return domain.Identity{UserID: "player1", Username: "alice", Role: domain.RolePlayer}
}

func (f *fixture) config() Config {
	return Config{
		Store:        f.store,
		Questions:    f.source,
		Input:        f.feed,
		Light:        f.light,
		Duration:     f.duration,
		PollInterval: time.Hour, // only the immediate startup poll runs during tests
	}
}

func (f *fixture) start(t *testing.T) *Session {
	t.Helper()
	sess := New(f.identity(), f.config())
	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return sess
}

// waitSafe blocks until the startup poll has published the green light.
func (f *fixture) waitSafe(t *testing.T, sess *Session) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sess.Snapshot().LightSafe {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("light never turned safe")
}

// waitPolled blocks until the startup poll has read the light at least
// once, so manual light changes afterwards cannot race with it.
func (f *fixture) waitPolled(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.light.readCount() > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("startup poll never ran")
}

func (f *fixture) submission(t *testing.T) domain.Submission {
	t.Helper()
	rec, err := f.store.GetOne(context.Background(), store.CollectionResponses, score.SubmissionID("player1"))
	if err != nil {
		t.Fatalf("submission record: %v", err)
	}
	sub := domain.Submission{
		ID:         rec.ID,
		PlayerID:   rec.Fields["user_id"].(string),
		Eliminated: rec.Fields["eliminated"].(bool),
	}
	if n, ok := rec.Fields["score"].(int); ok {
		sub.Score = n
	}
	if answers, ok := rec.Fields["answers"].([]map[string]any); ok {
		for _, a := range answers {
			sub.Answers = append(sub.Answers, domain.Response{
				QuestionID:     a["question_id"].(string),
				SelectedOption: a["selected_option"].(string),
			})
		}
	}
	return sub
}

func mustCreate(t *testing.T, rs store.RecordStore, collection string, fields store.Fields) {
	t.Helper()
	if _, err := rs.Create(context.Background(), collection, fields); err != nil {
		t.Fatalf("seed %s: %v", collection, err)
	}
}

// countingStore counts create calls per collection and can simulate
// submission write failures.
type countingStore struct {
	store.RecordStore
	mu         sync.Mutex
	created    map[string]int
	failCreate bool
}

func (c *countingStore) Create(ctx context.Context, collection string, fields store.Fields) (store.Record, error) {
	c.mu.Lock()
	if c.created == nil {
		c.created = make(map[string]int)
	}
	c.created[collection]++
	fail := c.failCreate && collection == store.CollectionResponses
	c.mu.Unlock()
	if fail {
		return store.Record{}, context.DeadlineExceeded
	}
	return c.RecordStore.Create(ctx, collection, fields)
}

func (c *countingStore) creates(collection string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created[collection]
}

type countingSource struct {
	loader *store.QuestionLoader
	calls  int
}

func (c *countingSource) Questions(ctx context.Context) ([]domain.Question, error) {
	c.calls++
	return c.loader.LoadQuestions(ctx)
}

// fakeLight is a deterministic LightReader for tests.
type fakeLight struct {
	mu    sync.Mutex
	value bool
	reads int
}

func (f *fakeLight) Read(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.value, nil
}

func (f *fakeLight) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}
