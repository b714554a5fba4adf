package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"redlight-quiz/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches the question bank from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

const bankKey = "quiz:questions"

// QuestionCache keeps the serialized question bank in Redis so every
// session process shares one cached copy, falling back to the loader on a
// miss. The bank is stored as a single JSON blob: presentation order must
// survive the round trip, which a hash would not guarantee.
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Questions(ctx context.Context) ([]domain.Question, error) {
	if cached, ok := c.fromCache(ctx); ok {
		return cached, nil
	}

	result, err, _ := c.sf.Do(bankKey, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if cached, ok := c.fromCache(ctx); ok {
			return cached, nil
		}

		questions, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		if raw, err := json.Marshal(questions); err == nil {
			_ = c.client.Set(ctx, bankKey, raw, c.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) fromCache(ctx context.Context) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, bankKey).Bytes()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
