// Package score holds the pure scoring and submission-encoding logic.
// The running session accumulates its score incrementally; Compute is the
// reference recount the incremental value must always agree with.
package score

import (
	"time"

	"redlight-quiz/internal/domain"
)

// Compute recounts the score from the recorded responses: one point per
// position whose confirmed answer text equals the question's correct option.
// Unanswered slots and out-of-range correct indices count zero.
func Compute(questions []domain.Question, responses []domain.Response) int {
	total := 0
	for i, q := range questions {
		if i >= len(responses) || !responses[i].Answered() {
			continue
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			continue
		}
		if responses[i].SelectedOption == q.Options[q.CorrectIndex] {
			total++
		}
	}
	return total
}

// SubmissionID derives a deterministic record key from the player ID, so a
// repeated submit overwrites the same record instead of creating a second one.
func SubmissionID(playerID string) string {
	return "sub_" + playerID
}

// EncodeSubmission builds the final submission payload. Unanswered slots are
// compacted out; answered responses keep presentation order.
func EncodeSubmission(playerID string, responses []domain.Response, total int, eliminated bool, now time.Time) domain.Submission {
	answers := make([]domain.Response, 0, len(responses))
	for _, r := range responses {
		if r.Answered() {
			answers = append(answers, r)
		}
	}
	return domain.Submission{
		ID:         SubmissionID(playerID),
		PlayerID:   playerID,
		Answers:    answers,
		Score:      total,
		Timestamp:  now,
		Eliminated: eliminated,
	}
}
