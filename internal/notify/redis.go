package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannel = "swimlane:changes"

type changeEvent struct {
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// RedisNotifier carries change signals between processes over Redis pub/sub.
// Each subscription is served by a local Broker fed from one Redis
// subscription, so every process sees its own writes echoed back as well as
// those of other processes.
type RedisNotifier struct {
	rc      *redis.Client
	channel string
	source  string
	logger  *zap.Logger
}

func NewRedisNotifier(rc *redis.Client, channel, source string, logger *zap.Logger) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{rc: rc, channel: channel, source: source, logger: logger}
}

func (n *RedisNotifier) Publish(ctx context.Context) error {
	data, err := json.Marshal(changeEvent{Source: n.source, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	return n.rc.Publish(ctx, n.channel, data).Err()
}

// Subscribe starts a Redis subscription that lives until ctx is done or the
// returned function is called. A dropped connection is re-established after
// a short pause.
func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan struct{}, func()) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan struct{}, 1)
	ready := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(out)
		first := true
		for {
			sub := n.rc.Subscribe(ctx, n.channel)
			// Receive the subscription confirmation so Publish calls made
			// after Subscribe returns are not lost.
			if _, err := sub.Receive(ctx); err != nil && ctx.Err() == nil {
				n.logger.Warn("redis subscribe failed", zap.String("channel", n.channel), zap.Error(err))
			}
			if first {
				close(ready)
				first = false
			}
			n.pump(ctx, sub.Channel(), out)
			sub.Close()

			if ctx.Err() != nil {
				return
			}
			n.logger.Warn("redis pubsub channel closed, reconnecting", zap.String("channel", n.channel))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}()

	select {
	case <-ready:
	case <-ctx.Done():
	}

	var once sync.Once
	return out, func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

func (n *RedisNotifier) pump(ctx context.Context, msgs <-chan *redis.Message, out chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev changeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				// The content is never used; any message counts as a change.
				n.logger.Debug("unparseable change event", zap.Error(err))
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}
