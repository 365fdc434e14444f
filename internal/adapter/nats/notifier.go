package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/uptalk/switchboard/internal/port/notifier"
)

// Notifier publishes operator events to JetStream so dashboards on
// other instances see them too. Subjects follow notify.<kind>.
type Notifier struct {
	queue *Queue
}

func NewNotifier(queue *Queue) *Notifier { return &Notifier{queue: queue} }

func (n *Notifier) Name() string { return "nats" }

func (n *Notifier) Send(ctx context.Context, e notifier.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.queue.Publish(ctx, "notify."+e.Kind, data)
}
