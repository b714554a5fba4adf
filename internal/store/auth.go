package store

import (
	"context"

	"redlight-quiz/internal/domain"
)

// FieldAuthenticator verifies credentials against the password field held
// on the player record itself. It backs the memory and postgres stores;
// the pocketbase backend delegates the check to the collaborator, which is
// the intended deployment.
type FieldAuthenticator struct {
	rs RecordStore
}

func NewFieldAuthenticator(rs RecordStore) *FieldAuthenticator {
	return &FieldAuthenticator{rs: rs}
}

func (a *FieldAuthenticator) AuthWithPassword(ctx context.Context, email, password string) (domain.Identity, error) {
	records, err := a.rs.ListAll(ctx, CollectionPlayers)
	if err != nil {
		return domain.Identity{}, err
	}
	for _, rec := range records {
		player := domain.PlayerFromFields(rec.ID, rec.Fields)
		if player.Email != email {
			continue
		}
		if pw, _ := rec.Fields["password"].(string); pw != "" && pw == password {
			return domain.Identity{UserID: player.ID, Username: player.Username, Role: player.Role}, nil
		}
		break
	}
	return domain.Identity{}, domain.ErrPlayerNotFound
}
