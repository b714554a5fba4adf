package store

import (
	"context"
	"errors"

	"redlight-quiz/internal/domain"
)

// LightAccessor wraps the singleton visibility record with a read/write
// interface. Any number of readers may poll it; the admin surface is the
// single logical writer. Staleness up to one poll interval is tolerated,
// so no locking is layered on top of the store.
type LightAccessor struct {
	rs RecordStore
}

func NewLightAccessor(rs RecordStore) *LightAccessor {
	return &LightAccessor{rs: rs}
}

// Read returns the current light value, lazily creating the singleton with
// light=false (red) on first read-miss.
func (l *LightAccessor) Read(ctx context.Context) (bool, error) {
	rec, err := l.rs.GetFirstMatch(ctx, CollectionState)
	if errors.Is(err, domain.ErrRecordNotFound) {
		created, cerr := l.rs.Create(ctx, CollectionState, Fields{"light": false})
		if cerr != nil {
			return false, cerr
		}
		rec = created
	} else if err != nil {
		return false, err
	}
	return domain.LightFromFields(rec.ID, rec.Fields).Light, nil
}

// Write overwrites the singleton light value, creating it if absent.
// The overwrite is idempotent.
func (l *LightAccessor) Write(ctx context.Context, on bool) error {
	rec, err := l.rs.GetFirstMatch(ctx, CollectionState)
	if errors.Is(err, domain.ErrRecordNotFound) {
		_, cerr := l.rs.Create(ctx, CollectionState, Fields{"light": on})
		return cerr
	}
	if err != nil {
		return err
	}
	_, err = l.rs.Update(ctx, CollectionState, rec.ID, Fields{"light": on})
	return err
}
