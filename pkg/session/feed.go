package session

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const TopicSessionChanged = "session.changed"

// Feed is an in-process publish/subscribe channel for session changes.
// Publishers are the sign-in, sign-up and sign-out operations; subscribers
// are gates and caches that need to re-resolve.
type Feed struct {
	pubSub *gochannel.GoChannel
}

func NewFeed() *Feed {
	return &Feed{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 16},
			watermill.NopLogger{},
		),
	}
}

// Publish announces a change. reason ends up as the message payload and is
// only used for logging.
func (f *Feed) Publish(reason string) error {
	if f == nil {
		return nil
	}
	msg := message.NewMessage(watermill.NewUUID(), []byte(reason))
	if err := f.pubSub.Publish(TopicSessionChanged, msg); err != nil {
		return errors.Wrap(err, "publish session change")
	}
	log.Debug().Str("component", "session-feed").Str("reason", reason).Msg("Published session change")
	return nil
}

// Subscribe returns a channel of change notifications that closes when ctx
// is done or the feed is closed. Callers must Ack every message.
func (f *Feed) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	if f == nil {
		return nil, errors.New("session feed is nil")
	}
	ch, err := f.pubSub.Subscribe(ctx, TopicSessionChanged)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe to session changes")
	}
	return ch, nil
}

func (f *Feed) Close() error {
	if f == nil {
		return nil
	}
	return f.pubSub.Close()
}
