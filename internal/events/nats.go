package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/visualix/visualix/internal/logging"
)

// MessagePublisher is the subset of *nats.Conn the forwarder needs.
type MessagePublisher interface {
	Publish(subject string, data []byte) error
}

// Forwarder republishes bus events to NATS as JSON on
// "<prefix>.<event_type>.<job_id>".
type Forwarder struct {
	bus    *EventBus
	pub    MessagePublisher
	prefix string
	logger *logging.Logger
}

// NewForwarder creates a forwarder.
func NewForwarder(bus *EventBus, pub MessagePublisher, prefix string, logger *logging.Logger) *Forwarder {
	if prefix == "" {
		prefix = "visualix"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Forwarder{bus: bus, pub: pub, prefix: prefix, logger: logger}
}

// ConnectNATS dials the server at url.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("visualix"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	return nc, nil
}

// Subject returns the subject an event is published on.
func (f *Forwarder) Subject(e Event) string {
	subject := f.prefix + "." + e.EventType()
	if id := e.JobID(); id != "" {
		subject += "." + strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(id)
	}
	return subject
}

// Run forwards events until ctx is done or the bus closes.
func (f *Forwarder) Run(ctx context.Context) error {
	ch := f.bus.Subscribe()
	defer f.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			data, err := json.Marshal(e)
			if err != nil {
				f.logger.Warn("encoding event", "type", e.EventType(), "error", err)
				continue
			}
			if err := f.pub.Publish(f.Subject(e), data); err != nil {
				f.logger.Warn("publishing event to NATS", "type", e.EventType(), "error", err)
			}
		}
	}
}
