package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"redlight-quiz/internal/domain"
	"redlight-quiz/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// RecordStore keeps every collection in one records table keyed by
// (collection, id), with the fields as a JSONB document. Creating with an
// existing id overwrites the document, which is what makes the
// deterministic submission key idempotent at the store level.
type RecordStore struct {
	pool *pgxpool.Pool
}

func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

func (s *RecordStore) GetOne(ctx context.Context, collection, id string) (store.Record, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM records WHERE collection=$1 AND id=$2`, collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Record{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("get record: %w", err)
	}
	return decodeRecord(id, raw)
}

func (s *RecordStore) GetFirstMatch(ctx context.Context, collection string) (store.Record, error) {
	var (
		id  string
		raw []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, data FROM records WHERE collection=$1 ORDER BY created LIMIT 1`, collection).Scan(&id, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Record{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("first match: %w", err)
	}
	return decodeRecord(id, raw)
}

func (s *RecordStore) ListAll(ctx context.Context, collection string) ([]store.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, data FROM records WHERE collection=$1 ORDER BY created`, collection)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []store.Record
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := decodeRecord(id, raw)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *RecordStore) Create(ctx context.Context, collection string, fields store.Fields) (store.Record, error) {
	id, _ := fields["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	raw, err := encodeFields(fields)
	if err != nil {
		return store.Record{}, err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO records (collection, id, data) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data`,
		collection, id, raw)
	if err != nil {
		return store.Record{}, fmt.Errorf("create record: %w", err)
	}
	return decodeRecord(id, raw)
}

func (s *RecordStore) Update(ctx context.Context, collection, id string, fields store.Fields) (store.Record, error) {
	raw, err := encodeFields(fields)
	if err != nil {
		return store.Record{}, err
	}
	var merged []byte
	err = s.pool.QueryRow(ctx,
		`UPDATE records SET data = data || $3::jsonb WHERE collection=$1 AND id=$2 RETURNING data`,
		collection, id, raw).Scan(&merged)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Record{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("update record: %w", err)
	}
	return decodeRecord(id, merged)
}

func encodeFields(fields store.Fields) ([]byte, error) {
	doc := make(store.Fields, len(fields))
	for k, v := range fields {
		if k == "id" {
			continue
		}
		doc[k] = v
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return raw, nil
}

func decodeRecord(id string, raw []byte) (store.Record, error) {
	fields := store.Fields{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return store.Record{}, fmt.Errorf("decode record: %w", err)
	}
	return store.Record{ID: id, Fields: fields}, nil
}
