package bus

import (
	"context"
	"log/slog"

	"github.com/petal-labs/cuke/runner"
)

// StoreSubscriber persists run events to an EventStore. An optional kind
// filter limits what is written: a long watch session typically stores the
// terminal step and scenario events and skips the started chatter. Its
// Handle method satisfies runner.EventHandler.
type StoreSubscriber struct {
	store  EventStore
	logger *slog.Logger
	kinds  map[runner.EventKind]struct{} // nil means every kind
}

// NewStoreSubscriber creates a StoreSubscriber. With no kinds given, every
// event is persisted.
func NewStoreSubscriber(store EventStore, logger *slog.Logger, kinds ...runner.EventKind) *StoreSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	s := &StoreSubscriber{
		store:  store,
		logger: logger,
	}
	if len(kinds) > 0 {
		s.kinds = make(map[runner.EventKind]struct{}, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = struct{}{}
		}
	}
	return s
}

// Handle persists a single event to the store. Persistence failures are
// logged with enough scenario context to find the gap in the stored run,
// and never interrupt the run itself.
func (s *StoreSubscriber) Handle(event runner.Event) {
	if s.kinds != nil {
		if _, ok := s.kinds[event.Kind]; !ok {
			return
		}
	}
	if err := s.store.Append(context.Background(), event); err != nil {
		s.logger.Error("failed to persist event",
			"run_id", event.RunID,
			"scenario", event.ScenarioName,
			"step", event.StepText,
			"kind", event.Kind,
			"seq", event.Seq,
			"error", err,
		)
	}
}
