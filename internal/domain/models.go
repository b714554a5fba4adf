package domain

import "time"

// Player roles as stored in the players collection.
const (
	RolePlayer = "player"
	RoleAdmin  = "admin"
)

// Identity is the authenticated identity produced by the collaborator store.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

// Player is the per-player eligibility record. Once Attempted or Moved is
// set, a new session must not be allowed to answer.
type Player struct {
	ID        string
	Username  string
	Email     string
	Role      string
	Attempted bool
	Moved     bool
	Score     int
}

// Eligible reports whether a fresh session may proceed to answering.
func (p Player) Eligible() bool {
	return !p.Attempted && !p.Moved
}

// Question is a single MCQ entry. Options keep presentation order;
// CorrectIndex is the 0-based position of the correct option.
type Question struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// Response records the option a player confirmed for one question.
type Response struct {
	QuestionID     string `json:"question_id"`
	SelectedOption string `json:"selected_option"`
}

// Answered reports whether this response slot holds a confirmed answer.
func (r Response) Answered() bool {
	return r.QuestionID != ""
}

// Submission is the final record of a finished run. Its ID is derived from
// the player ID so a duplicate submit overwrites instead of multiplying.
type Submission struct {
	ID         string
	PlayerID   string
	Answers    []Response
	Score      int
	Timestamp  time.Time
	Eliminated bool
}

// LightState mirrors the singleton visibility record: Light true means
// green (movement safe), false means red.
type LightState struct {
	ID    string
	Light bool
}
