package session

import "github.com/studyhall/backend/internal/models"

// ModePolicy parameterizes the one session state machine for every
// delivery mode. The practice/test/exam flows differ only in these
// knobs, never in transition structure.
type ModePolicy struct {
	Mode models.Mode

	// ImmediateFeedback reveals correctness and rationale as soon as an
	// answer is submitted. Exam mode withholds everything until finish.
	ImmediateFeedback bool

	// Timed applies the attempt's configured limit. Untimed modes
	// ignore the limit entirely.
	Timed bool

	// LockOnReveal freezes a question's selection once revealed.
	// Exam mode never reveals mid-attempt, so selections stay open for
	// change until the final submit.
	LockOnReveal bool
}

func PolicyFor(mode models.Mode) ModePolicy {
	switch mode {
	case models.ModeTest:
		return ModePolicy{
			Mode:              models.ModeTest,
			ImmediateFeedback: true,
			Timed:             true,
			LockOnReveal:      true,
		}
	case models.ModeExam:
		return ModePolicy{
			Mode:              models.ModeExam,
			ImmediateFeedback: false,
			Timed:             true,
			LockOnReveal:      false,
		}
	default:
		return ModePolicy{
			Mode:              models.ModePractice,
			ImmediateFeedback: true,
			Timed:             false,
			LockOnReveal:      true,
		}
	}
}
