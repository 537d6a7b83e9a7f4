package service

import (
	"errors"
	"fmt"

	"recharge_desk/internal/model"
)

var ErrTransitionNotAllowed = errors.New("status transition not allowed")

// StatusPolicy decides which status changes an admin may apply
type StatusPolicy interface {
	Allow(from, to model.Status) error
}

// PermissivePolicy accepts any change between valid statuses
type PermissivePolicy struct{}

func (PermissivePolicy) Allow(_, _ model.Status) error { return nil }

// ForwardOnlyPolicy only moves transactions along
// pending -> paid -> completed, with cancellation allowed before completion.
// Re-applying the current status is accepted.
type ForwardOnlyPolicy struct{}

var forwardTransitions = map[model.Status][]model.Status{
	model.StatusPending: {model.StatusPaid, model.StatusCompleted, model.StatusCancelled},
	model.StatusPaid:    {model.StatusCompleted, model.StatusCancelled},
}

func (ForwardOnlyPolicy) Allow(from, to model.Status) error {
	if from == to {
		return nil
	}
	for _, next := range forwardTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
}

// NewStatusPolicy resolves a policy by its configuration name
func NewStatusPolicy(name string) (StatusPolicy, error) {
	switch name {
	case "", "permissive":
		return PermissivePolicy{}, nil
	case "forward_only":
		return ForwardOnlyPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown status policy %q", name)
	}
}
