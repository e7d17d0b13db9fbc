package selector

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/studyhall/backend/internal/models"
)

// ErrInsufficientQuestions signals that even the broadest fallback tier
// could not cover the requested count. The engine never pads or
// silently truncates; callers redirect to reconfiguration.
var ErrInsufficientQuestions = errors.New("insufficient questions")

// CandidateSource yields the IDs of approved questions matching a
// filter. Empty filter fields are unconstrained.
type CandidateSource interface {
	CandidateIDs(filter models.QuestionFilter) ([]int64, error)
}

type Config struct {
	ExamType   string
	Topic      string
	Difficulty string
	Count      int
}

type Result struct {
	QuestionIDs []int64
	// Tier records which fallback level produced the candidates:
	// 1 = exam type + topic, 2 = exam type only, 3 = any approved.
	Tier int
}

// Pick runs the cascading filter relaxation and returns a shuffled,
// fixed selection of exactly cfg.Count question IDs. The first tier with
// a non-empty candidate set wins; if that set is smaller than the
// requested count the call fails with ErrInsufficientQuestions.
//
// The shuffle is a uniform permutation (rand.Shuffle is Fisher–Yates);
// a sort-by-random-key scheme would be biased under ties and is
// deliberately not used.
func Pick(src CandidateSource, cfg Config, rng *rand.Rand) (*Result, error) {
	if cfg.Count <= 0 {
		return nil, fmt.Errorf("invalid count %d", cfg.Count)
	}

	tiers := []models.QuestionFilter{
		{ExamType: cfg.ExamType, Topic: cfg.Topic, Difficulty: cfg.Difficulty},
		{ExamType: cfg.ExamType},
		{},
	}

	for i, filter := range tiers {
		// Tier 1 without a topic collapses into tier 2; skip the duplicate query.
		if i == 0 && cfg.Topic == "" && cfg.Difficulty == "" {
			continue
		}

		candidates, err := src.CandidateIDs(filter)
		if err != nil {
			return nil, fmt.Errorf("tier %d candidates: %w", i+1, err)
		}
		if len(candidates) == 0 {
			continue
		}
		if len(candidates) < cfg.Count {
			return nil, fmt.Errorf("tier %d has %d of %d needed: %w",
				i+1, len(candidates), cfg.Count, ErrInsufficientQuestions)
		}

		ids := make([]int64, len(candidates))
		copy(ids, candidates)
		rng.Shuffle(len(ids), func(a, b int) { ids[a], ids[b] = ids[b], ids[a] })

		return &Result{QuestionIDs: ids[:cfg.Count], Tier: i + 1}, nil
	}

	return nil, fmt.Errorf("no approved questions: %w", ErrInsufficientQuestions)
}
