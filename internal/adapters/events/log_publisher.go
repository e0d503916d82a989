package events

import (
	"context"
	"log"

	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
)

// LogPublisher writes change-feed events to the process log. It is the
// publisher used when no webhook is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, event domain.EventEnvelope) error {
	log.Printf("change feed publish topic=%s event_id=%s event_type=%s family=%s config_version=%d actor=%s", topic, event.EventID, event.EventType, event.FamilyID, event.ConfigVersion, event.Actor)
	return nil
}
