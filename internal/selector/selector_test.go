package selector

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/studyhall/backend/internal/models"
)

// fakeSource maps exact filters to candidate lists and records which
// tiers were queried.
type fakeSource struct {
	candidates map[models.QuestionFilter][]int64
	queried    []models.QuestionFilter
}

func (f *fakeSource) CandidateIDs(filter models.QuestionFilter) ([]int64, error) {
	f.queried = append(f.queried, filter)
	return f.candidates[filter], nil
}

func ids(from, to int64) []int64 {
	var out []int64
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestPickReturnsExactCount(t *testing.T) {
	src := &fakeSource{candidates: map[models.QuestionFilter][]int64{
		{ExamType: "lsat", Topic: "logic"}: ids(1, 20),
	}}

	result, err := Pick(src, Config{ExamType: "lsat", Topic: "logic", Count: 5}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	if result.Tier != 1 {
		t.Errorf("Tier = %d, want 1", result.Tier)
	}
	if len(result.QuestionIDs) != 5 {
		t.Fatalf("len(QuestionIDs) = %d, want 5", len(result.QuestionIDs))
	}

	seen := map[int64]bool{}
	for _, id := range result.QuestionIDs {
		if seen[id] {
			t.Errorf("duplicate question ID %d", id)
		}
		seen[id] = true
		if id < 1 || id > 20 {
			t.Errorf("question ID %d is not a tier-1 candidate", id)
		}
	}
}

func TestPickIsPermutationWhenCountEqualsPool(t *testing.T) {
	src := &fakeSource{candidates: map[models.QuestionFilter][]int64{
		{ExamType: "lsat", Topic: "logic"}: ids(1, 8),
	}}

	result, err := Pick(src, Config{ExamType: "lsat", Topic: "logic", Count: 8}, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}

	seen := map[int64]bool{}
	for _, id := range result.QuestionIDs {
		seen[id] = true
	}
	for _, want := range ids(1, 8) {
		if !seen[want] {
			t.Errorf("question %d missing from permutation", want)
		}
	}
}

func TestPickTopicFallback(t *testing.T) {
	// The topic has zero matches but the exam alone has plenty: tier 2
	// must fire and return its own candidates, never an empty result.
	src := &fakeSource{candidates: map[models.QuestionFilter][]int64{
		{ExamType: "lsat"}: ids(1, 10),
	}}

	result, err := Pick(src, Config{ExamType: "lsat", Topic: "nonexistent", Count: 5}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	if result.Tier != 2 {
		t.Errorf("Tier = %d, want 2", result.Tier)
	}
	if len(result.QuestionIDs) != 5 {
		t.Errorf("len(QuestionIDs) = %d, want 5", len(result.QuestionIDs))
	}
}

func TestPickAnyApprovedFallback(t *testing.T) {
	src := &fakeSource{candidates: map[models.QuestionFilter][]int64{
		{}: ids(1, 6),
	}}

	result, err := Pick(src, Config{ExamType: "gre", Topic: "algebra", Count: 4}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	if result.Tier != 3 {
		t.Errorf("Tier = %d, want 3", result.Tier)
	}
}

func TestPickInsufficientDoesNotRelaxFurther(t *testing.T) {
	// Tier 1 is non-empty but short. Relaxation is only for empty
	// tiers, so the broader pools must not be consulted.
	src := &fakeSource{candidates: map[models.QuestionFilter][]int64{
		{ExamType: "lsat", Topic: "logic"}: ids(1, 3),
		{ExamType: "lsat"}:                 ids(1, 100),
	}}

	_, err := Pick(src, Config{ExamType: "lsat", Topic: "logic", Count: 5}, rand.New(rand.NewSource(1)))
	if !errors.Is(err, ErrInsufficientQuestions) {
		t.Fatalf("Pick() error = %v, want ErrInsufficientQuestions", err)
	}
	if len(src.queried) != 1 {
		t.Errorf("queried %d tiers, want 1", len(src.queried))
	}
}

func TestPickEmptyCorpus(t *testing.T) {
	src := &fakeSource{candidates: map[models.QuestionFilter][]int64{}}

	_, err := Pick(src, Config{ExamType: "lsat", Count: 5}, rand.New(rand.NewSource(1)))
	if !errors.Is(err, ErrInsufficientQuestions) {
		t.Fatalf("Pick() error = %v, want ErrInsufficientQuestions", err)
	}
}

func TestPickSkipsRedundantTierOne(t *testing.T) {
	src := &fakeSource{candidates: map[models.QuestionFilter][]int64{
		{ExamType: "lsat"}: ids(1, 10),
	}}

	result, err := Pick(src, Config{ExamType: "lsat", Count: 5}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	if result.Tier != 2 {
		t.Errorf("Tier = %d, want 2", result.Tier)
	}
	if len(src.queried) != 1 {
		t.Errorf("queried %d tiers, want 1 (tier 1 duplicates tier 2 without a topic)", len(src.queried))
	}
}

func TestPickDeterministicForSeed(t *testing.T) {
	candidates := map[models.QuestionFilter][]int64{
		{ExamType: "lsat", Topic: "logic"}: ids(1, 30),
	}
	cfg := Config{ExamType: "lsat", Topic: "logic", Count: 10}

	first, err := Pick(&fakeSource{candidates: candidates}, cfg, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	second, err := Pick(&fakeSource{candidates: candidates}, cfg, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}

	for i := range first.QuestionIDs {
		if first.QuestionIDs[i] != second.QuestionIDs[i] {
			t.Fatalf("position %d: %d != %d for identical seeds", i, first.QuestionIDs[i], second.QuestionIDs[i])
		}
	}
}
