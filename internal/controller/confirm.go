package controller

import "context"

// Confirmer asks the operator to approve a destructive command.
// Returning false aborts the command before anything is sent.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// AlwaysConfirm approves every prompt (e.g. for --yes).
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, string) bool { return true })

// NeverConfirm declines every prompt. It is the default when no Confirmer is configured.
var NeverConfirm Confirmer = ConfirmFunc(func(context.Context, string) bool { return false })
