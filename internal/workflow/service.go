// Package workflow implements the attribute use cases as sagas over the
// relation store.
package workflow

import (
	"context"

	"go.uber.org/zap"

	"product-attribute-service/internal/events"
	"product-attribute-service/internal/logger"
	"product-attribute-service/internal/query"
	"product-attribute-service/internal/saga"
	"product-attribute-service/internal/store"
	"product-attribute-service/internal/validation"
)

// Saga names, also used as metric labels.
const (
	SagaCreateAttributes      = "create-attributes"
	SagaUpdateAttributes      = "update-attributes"
	SagaDeleteAttributes      = "delete-attributes"
	SagaCreateAttributeValue  = "create-attribute-value"
	SagaDeleteAttributeValues = "delete-attribute-values"
	SagaCreateAttributeSets   = "create-attribute-sets"
	SagaCreatePossibleValues  = "create-possible-values"
	SagaLinkProductValues     = "link-product-values"
	SagaReplaceProductValues  = "replace-product-values"
)

// Service runs the attribute use cases.
type Service struct {
	store     store.RelationStore
	validator *validation.Engine
	resolver  *query.Resolver
	runner    *saga.Runner
	emitter   events.Emitter
}

// NewService wires a Service. A nil runner or emitter falls back to a runner
// without metrics and an emitter that drops events.
func NewService(s store.RelationStore, runner *saga.Runner, emitter events.Emitter) *Service {
	if runner == nil {
		runner = saga.NewRunner(nil)
	}
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &Service{
		store:     s,
		validator: validation.NewEngine(s),
		resolver:  query.NewResolver(s),
		runner:    runner,
		emitter:   emitter,
	}
}

// emitStep publishes an event. There is nothing to compensate, but a delivery
// failure fails the saga.
func (s *Service) emitStep(name string, ids func() []string) saga.Step {
	return saga.Step{
		Name: "emit-" + name,
		Forward: func(ctx context.Context) error {
			if err := s.emitter.Emit(ctx, events.New(name, ids())); err != nil {
				logger.FromContext(ctx).Warn("failed to emit event",
					zap.String("event", name),
					zap.Error(err),
				)
				return err
			}
			return nil
		},
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
