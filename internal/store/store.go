package store

import (
	"context"

	"redlight-quiz/internal/domain"
)

// Collection names on the collaborator store.
const (
	CollectionPlayers   = "players"
	CollectionQuestions = "questions"
	CollectionResponses = "responses"
	CollectionState     = "state"
)

// Fields is the raw field set of a store record.
type Fields map[string]any

// Record is one document returned by the store.
type Record struct {
	ID     string
	Fields Fields
}

// RecordStore is the CRUD-by-id surface of the collaborator document store.
// No transactional guarantees exist across calls; concurrent writers are
// last-write-wins.
type RecordStore interface {
	GetOne(ctx context.Context, collection, id string) (Record, error)
	GetFirstMatch(ctx context.Context, collection string) (Record, error)
	ListAll(ctx context.Context, collection string) ([]Record, error)
	Create(ctx context.Context, collection string, fields Fields) (Record, error)
	Update(ctx context.Context, collection, id string, fields Fields) (Record, error)
}

// Authenticator verifies player credentials against the store and returns
// the authenticated identity.
type Authenticator interface {
	AuthWithPassword(ctx context.Context, email, password string) (domain.Identity, error)
}

// GetPlayer loads and coerces a player eligibility record.
func GetPlayer(ctx context.Context, rs RecordStore, id string) (domain.Player, error) {
	rec, err := rs.GetOne(ctx, CollectionPlayers, id)
	if err != nil {
		return domain.Player{}, err
	}
	return domain.PlayerFromFields(rec.ID, rec.Fields), nil
}

// ListPlayers returns a read-only snapshot of all player records.
func ListPlayers(ctx context.Context, rs RecordStore) ([]domain.Player, error) {
	recs, err := rs.ListAll(ctx, CollectionPlayers)
	if err != nil {
		return nil, err
	}
	players := make([]domain.Player, 0, len(recs))
	for _, rec := range recs {
		players = append(players, domain.PlayerFromFields(rec.ID, rec.Fields))
	}
	return players, nil
}

// SubmissionFields encodes a submission for a store write.
func SubmissionFields(sub domain.Submission) Fields {
	answers := make([]map[string]any, 0, len(sub.Answers))
	for _, a := range sub.Answers {
		answers = append(answers, map[string]any{
			"question_id":     a.QuestionID,
			"selected_option": a.SelectedOption,
		})
	}
	return Fields{
		"id":         sub.ID,
		"user_id":    sub.PlayerID,
		"answers":    answers,
		"score":      sub.Score,
		"timestamp":  sub.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		"eliminated": sub.Eliminated,
	}
}
