package session

import (
	"context"
	"errors"
)

var ErrNotConfirmed = errors.New("not confirmed")

const (
	PromptAbandonSession = "Your progress will not be saved by leaving. Leave anyway?"
	PromptDiscardDraft   = "Discard the sets you have not saved?"
	PromptFinish         = "Finish this workout?"
	PromptDeleteWorkout  = "Delete this workout?"
	PromptDeleteExercise = "Delete this exercise?"
)

//go:generate mockgen -source=$GOFILE -destination=confirm_mocks_test.go -package=session_test

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

var (
	AlwaysConfirm ConfirmFunc = func(context.Context, string) (bool, error) { return true, nil }
	NeverConfirm  ConfirmFunc = func(context.Context, string) (bool, error) { return false, nil }
)

type confirmerCtxKey struct{}

// WithConfirmer overrides the machine's Confirmer for calls made with the returned context.
func WithConfirmer(ctx context.Context, c Confirmer) context.Context {
	return context.WithValue(ctx, confirmerCtxKey{}, c)
}

func confirmerFrom(ctx context.Context, fallback Confirmer) Confirmer {
	if c, ok := ctx.Value(confirmerCtxKey{}).(Confirmer); ok && c != nil {
		return c
	}
	return fallback
}
