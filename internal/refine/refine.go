// Package refine improves a narrative draft through review and rewrite rounds.
package refine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/carta/internal/failure"
	"github.com/yairfalse/carta/internal/llm"
)

// DefaultRounds is the number of review/rewrite rounds.
const DefaultRounds = 3

// Personas used when a Loop leaves them empty.
const (
	ReviewerPersona = "You are a senior cloud architect reviewing technical documentation. " +
		"Point out inaccuracies, missing configuration details, unclear wording and structural problems. " +
		"Reply with a numbered list of concrete improvements only."
	AuthorPersona = "You are an expert cloud architect and documentation writer. " +
		"Rewrite the documentation so that it addresses every point of the review. " +
		"Reply with the complete revised documentation only."
)

// Phase names a step of a round.
type Phase string

const (
	PhaseReview  Phase = "review"
	PhaseRewrite Phase = "rewrite"
)

// State is carried between rounds. Only Draft survives the loop.
type State struct {
	Draft    string
	Feedback []string
	Round    int
}

// Loop runs a fixed number of review then rewrite rounds.
type Loop struct {
	Gen         llm.Generator
	Rounds      int
	Temperature float64
	MaxTokens   int

	Reviewer string
	Author   string

	// Stop, when set, is consulted after each review; returning true ends
	// the loop before the rewrite.
	Stop func(State) bool
}

// Refine returns the draft after Rounds rounds. With zero rounds the draft is
// returned unchanged and no calls are made.
func (l *Loop) Refine(ctx context.Context, draft string) (string, error) {
	st := State{Draft: draft}

	for st.Round = 1; st.Round <= l.Rounds; st.Round++ {
		feedback, err := l.call(ctx, l.reviewer(), st.Draft)
		if err != nil {
			return "", l.fail(st.Round, PhaseReview, err)
		}
		st.Feedback = append(st.Feedback, feedback)

		if l.Stop != nil && l.Stop(st) {
			log.Debug().Int("round", st.Round).Msg("Refinement stopped early")
			break
		}

		rewritten, err := l.call(ctx, l.author(), rewritePrompt(st.Draft, feedback))
		if err != nil {
			return "", l.fail(st.Round, PhaseRewrite, err)
		}
		st.Draft = rewritten
		log.Debug().Int("round", st.Round).Int("chars", len(st.Draft)).Msg("Refinement round complete")
	}

	return st.Draft, nil
}

func (l *Loop) call(ctx context.Context, system, user string) (string, error) {
	return l.Gen.Generate(ctx, llm.Request{
		System:      system,
		User:        user,
		Temperature: l.Temperature,
		MaxTokens:   l.MaxTokens,
	})
}

func (l *Loop) fail(round int, phase Phase, err error) error {
	return failure.New(failure.Generation, fmt.Sprintf("refine round %d %s", round, phase), err)
}

func (l *Loop) reviewer() string {
	if l.Reviewer == "" {
		return ReviewerPersona
	}
	return l.Reviewer
}

func (l *Loop) author() string {
	if l.Author == "" {
		return AuthorPersona
	}
	return l.Author
}

func rewritePrompt(draft, feedback string) string {
	return "Documentation:\n" + draft + "\n\nReview:\n" + feedback
}
