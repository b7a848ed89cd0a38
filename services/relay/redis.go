// Package relaysvc delivers realtime events between app nodes. Events are
// published to a redis channel and forwarded to the local websocket hub, so
// a message posted on one node reaches clients connected to another.
package relaysvc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/darasa/core"
)

// Forwarder is a Relay whose inbound side can be wired to a local consumer.
type Forwarder interface {
	core.Relay

	// StartForwarder dispatches every relayed event to handle until ctx is done.
	StartForwarder(ctx context.Context, handle func(core.Event))
}

// wireEvent is the envelope published on the redis channel.
type wireEvent struct {
	Room string          `json:"room"`
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

type redisRelay struct {
	client  *redis.Client
	channel string
	logger  core.Logger
}

var _ Forwarder = (*redisRelay)(nil)

func NewRedisRelay(conf *core.Config, logger core.Logger) *redisRelay {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
	})
	return &redisRelay{
		client:  client,
		channel: conf.Redis.Channel,
		logger:  logger,
	}
}

func (r *redisRelay) Publish(ctx context.Context, event core.Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return errors.Wrap(err, "marshaling event data")
	}
	payload, err := json.Marshal(wireEvent{Room: event.Room, Name: event.Name, Data: data})
	if err != nil {
		return errors.Wrap(err, "marshaling event")
	}
	if err = r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return errors.Wrap(err, "publishing event")
	}
	return nil
}

func (r *redisRelay) StartForwarder(ctx context.Context, handle func(core.Event)) {
	sub := r.client.Subscribe(ctx, r.channel)
	go func() {
		defer func() { _ = sub.Close() }()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev wireEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.logger.Warn(fmt.Sprintf("relay: dropping malformed event: %v", err))
					continue
				}
				handle(core.Event{Room: ev.Room, Name: ev.Name, Data: ev.Data})
			}
		}
	}()
}

func (r *redisRelay) Close() error {
	return r.client.Close()
}
