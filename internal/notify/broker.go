// Package notify delivers catalog notices to the signed-in user's open
// event streams.
package notify

import (
	"context"
	"sync"
	"time"

	"keerthanaapi/internal/catalog"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	eventBuffer  = 256
	clientBuffer = 32
)

type Notification struct {
	ID string `json:"id"`
	catalog.Notice
	At time.Time `json:"at"`
}

type envelope struct {
	userID string
	n      Notification
}

type client struct {
	userID string
	ch     chan Notification
}

// Broker fans notifications out to the subscribers of each user.
type Broker struct {
	clients    map[string]map[*client]struct{}
	register   chan *client
	unregister chan *client
	events     chan envelope
	done       chan struct{}
	mu         sync.RWMutex
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewBroker(logger *zerolog.Logger) *Broker {
	return &Broker{
		clients:    make(map[string]map[*client]struct{}),
		register:   make(chan *client, 16),
		unregister: make(chan *client, 16),
		events:     make(chan envelope, eventBuffer),
		done:       make(chan struct{}),
		logger:     logger,
		now:        time.Now,
	}
}

// Run is the broker loop. It returns when ctx is cancelled, closing every
// subscriber channel.
func (b *Broker) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for _, set := range b.clients {
				for c := range set {
					close(c.ch)
				}
			}
			b.clients = make(map[string]map[*client]struct{})
			b.mu.Unlock()
			b.logger.Info().Msg("notification broker shut down")
			return

		case c := <-b.register:
			b.mu.Lock()
			set, ok := b.clients[c.userID]
			if !ok {
				set = make(map[*client]struct{})
				b.clients[c.userID] = set
			}
			set[c] = struct{}{}
			b.mu.Unlock()
			b.logger.Debug().Str("user_id", c.userID).Int("streams", len(set)).Msg("subscriber registered")

		case c := <-b.unregister:
			b.mu.Lock()
			if set, ok := b.clients[c.userID]; ok {
				if _, ok := set[c]; ok {
					delete(set, c)
					close(c.ch)
				}
				if len(set) == 0 {
					delete(b.clients, c.userID)
				}
			}
			b.mu.Unlock()
			b.logger.Debug().Str("user_id", c.userID).Msg("subscriber unregistered")

		case e := <-b.events:
			b.mu.RLock()
			for c := range b.clients[e.userID] {
				select {
				case c.ch <- e.n:
				default:
					b.logger.Warn().Str("user_id", e.userID).Str("title", e.n.Title).Msg("subscriber buffer full, notification skipped")
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Publish queues n for userID. It never blocks; when the queue is full the
// notification is dropped.
func (b *Broker) Publish(userID string, n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.At.IsZero() {
		n.At = b.now()
	}
	select {
	case b.events <- envelope{userID: userID, n: n}:
	default:
		b.logger.Warn().Str("user_id", userID).Str("title", n.Title).Msg("notification queue full, notification dropped")
	}
}

// Subscribe returns a channel of userID's notifications and a function that
// ends the subscription. The channel is closed when the subscription ends or
// the broker stops.
func (b *Broker) Subscribe(userID string) (<-chan Notification, func()) {
	c := &client{userID: userID, ch: make(chan Notification, clientBuffer)}
	select {
	case b.register <- c:
	case <-b.done:
		close(c.ch)
		return c.ch, func() {}
	}

	var once sync.Once
	return c.ch, func() {
		once.Do(func() {
			select {
			case b.unregister <- c:
			case <-b.done:
			}
		})
	}
}

// SubscriberCount returns the number of open streams for userID.
func (b *Broker) SubscriberCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[userID])
}

// For returns a catalog.Notifier that publishes to userID.
func (b *Broker) For(userID string) catalog.Notifier {
	return userNotifier{broker: b, userID: userID}
}

type userNotifier struct {
	broker *Broker
	userID string
}

func (u userNotifier) Notify(_ context.Context, n catalog.Notice) {
	u.broker.Publish(u.userID, Notification{Notice: n})
}
