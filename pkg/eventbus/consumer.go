// Package eventbus drives a FirmamentSchedulerServer from events consumed
// off a Pulsar topic, so task and node lifecycle changes can be published
// asynchronously instead of only through the synchronous HTTP surface in
// pkg/transport/httpapi.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/golang/glog"

	"github.com/flowsched/flowsched/pkg/proto"
)

type EventKind string

const (
	EventTaskSubmitted EventKind = "task_submitted"
	EventTaskCompleted EventKind = "task_completed"
	EventTaskFailed    EventKind = "task_failed"
	EventTaskRemoved   EventKind = "task_removed"
	EventTaskUpdated   EventKind = "task_updated"
	EventNodeAdded     EventKind = "node_added"
	EventNodeRemoved   EventKind = "node_removed"
	EventNodeFailed    EventKind = "node_failed"
	EventNodeUpdated   EventKind = "node_updated"
)

// Event is the envelope carried on the Pulsar topic. Payload's shape
// depends on Kind and is decoded once the consumer knows which
// FirmamentSchedulerServer method it routes to.
type Event struct {
	Kind    EventKind       `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Config gathers the Pulsar connection details for a Consumer.
type Config struct {
	URL              string
	Topic            string
	SubscriptionName string
}

// Consumer drains scheduling events off a Pulsar topic and replays them
// against a FirmamentSchedulerServer.
type Consumer struct {
	client   pulsar.Client
	consumer pulsar.Consumer
	server   proto.FirmamentSchedulerServer
}

func NewConsumer(cfg Config, server proto.FirmamentSchedulerServer) (*Consumer, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{URL: cfg.URL})
	if err != nil {
		return nil, fmt.Errorf("eventbus: creating pulsar client: %w", err)
	}

	sub := cfg.SubscriptionName
	if sub == "" {
		sub = "flowsched-scheduler"
	}
	consumer, err := client.Subscribe(pulsar.ConsumerOptions{
		Topic:            cfg.Topic,
		SubscriptionName: sub,
		Type:             pulsar.Failover,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("eventbus: subscribing to %q: %w", cfg.Topic, err)
	}
	return &Consumer{client: client, consumer: consumer, server: server}, nil
}

func (c *Consumer) Close() {
	c.consumer.Close()
	c.client.Close()
}

// Run drains the subscription until ctx is cancelled. A message that fails
// to decode or apply is logged and acked anyway: there is no dead-letter
// topic configured here, and retrying a malformed message forever would
// wedge the subscription behind it.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		recvCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		msg, err := c.consumer.Receive(recvCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			glog.Warningf("eventbus: receive failed: %v", err)
			continue
		}

		if err := c.apply(ctx, msg.Payload()); err != nil {
			glog.Errorf("eventbus: dropping unprocessable message %s: %v", msg.ID(), err)
		}
		c.consumer.Ack(msg)
	}
}

func (c *Consumer) apply(ctx context.Context, raw []byte) error {
	var evt Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return fmt.Errorf("decoding envelope: %w", err)
	}

	switch evt.Kind {
	case EventTaskSubmitted:
		var desc proto.TaskDescription
		if err := json.Unmarshal(evt.Payload, &desc); err != nil {
			return err
		}
		_, err := c.server.TaskSubmitted(ctx, &desc)
		return err
	case EventTaskUpdated:
		var desc proto.TaskDescription
		if err := json.Unmarshal(evt.Payload, &desc); err != nil {
			return err
		}
		_, err := c.server.TaskUpdated(ctx, &desc)
		return err
	case EventTaskCompleted:
		var uid proto.TaskUID
		if err := json.Unmarshal(evt.Payload, &uid); err != nil {
			return err
		}
		_, err := c.server.TaskCompleted(ctx, &uid)
		return err
	case EventTaskFailed:
		var uid proto.TaskUID
		if err := json.Unmarshal(evt.Payload, &uid); err != nil {
			return err
		}
		_, err := c.server.TaskFailed(ctx, &uid)
		return err
	case EventTaskRemoved:
		var uid proto.TaskUID
		if err := json.Unmarshal(evt.Payload, &uid); err != nil {
			return err
		}
		_, err := c.server.TaskRemoved(ctx, &uid)
		return err
	case EventNodeAdded:
		var rtnd proto.ResourceTopologyNodeDescriptor
		if err := json.Unmarshal(evt.Payload, &rtnd); err != nil {
			return err
		}
		_, err := c.server.NodeAdded(ctx, &rtnd)
		return err
	case EventNodeUpdated:
		var rtnd proto.ResourceTopologyNodeDescriptor
		if err := json.Unmarshal(evt.Payload, &rtnd); err != nil {
			return err
		}
		_, err := c.server.NodeUpdated(ctx, &rtnd)
		return err
	case EventNodeRemoved:
		var uid proto.ResourceUID
		if err := json.Unmarshal(evt.Payload, &uid); err != nil {
			return err
		}
		_, err := c.server.NodeRemoved(ctx, &uid)
		return err
	case EventNodeFailed:
		var uid proto.ResourceUID
		if err := json.Unmarshal(evt.Payload, &uid); err != nil {
			return err
		}
		_, err := c.server.NodeFailed(ctx, &uid)
		return err
	default:
		return fmt.Errorf("unknown event kind %q", evt.Kind)
	}
}
