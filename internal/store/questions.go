package store

import (
	"context"
	"fmt"

	"redlight-quiz/internal/domain"
)

// QuestionLoader reads the full question bank from the collaborator store,
// coercing each record at the boundary. Presentation order is the store's
// listing order.
type QuestionLoader struct {
	rs RecordStore
}

func NewQuestionLoader(rs RecordStore) *QuestionLoader {
	return &QuestionLoader{rs: rs}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	recs, err := l.rs.ListAll(ctx, CollectionQuestions)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	questions := make([]domain.Question, 0, len(recs))
	for _, rec := range recs {
		questions = append(questions, domain.QuestionFromFields(rec.ID, rec.Fields))
	}
	return questions, nil
}
