package registry

import (
	"github.com/zjrosen/rolodex/internal/contacts/domain"
	"github.com/zjrosen/rolodex/internal/pubsub"
)

// PublishTo returns an Observer that forwards every event to broker.
// Publishing never blocks: slow subscribers lose events instead of stalling mutations.
func PublishTo(broker pubsub.Publisher[domain.Event]) Observer {
	return func(ev domain.Event) {
		broker.Publish(eventTypeFor(ev.Type), ev)
	}
}

func eventTypeFor(t domain.EventType) pubsub.EventType {
	switch t {
	case domain.EventCreated:
		return pubsub.CreatedEvent
	case domain.EventDeleted:
		return pubsub.DeletedEvent
	default:
		return pubsub.UpdatedEvent
	}
}

// Recorder is an Observer that keeps every event it sees. Useful in tests and
// for callers that want the events of a batch of mutations.
type Recorder struct {
	Events []domain.Event
}

// Observe appends ev. Pass r.Observe to WithObserver.
func (r *Recorder) Observe(ev domain.Event) {
	r.Events = append(r.Events, ev)
}

// Last returns the most recent event, or false if none was recorded.
func (r *Recorder) Last() (domain.Event, bool) {
	if len(r.Events) == 0 {
		return domain.Event{}, false
	}
	return r.Events[len(r.Events)-1], true
}
