package usecase

import (
	"context"

	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
)

// AccessEvaluator answers "may this user see this resource right now".
// It is consumed by the HTTP layer and by page-rendering collaborators.
type AccessEvaluator interface {
	Evaluate(ctx context.Context, userID string, c model.Capability) (model.AccessDecision, error)
}
