package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/tenant-session-gateway/internal/config"
)

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, SessionEvent) {}

type sendFunc func(ctx context.Context, body []byte) error

// Publisher buffers audit events and ships them to a durable queue from a
// single goroutine. Publish never blocks; when the buffer is full the event
// is dropped and logged.
type Publisher struct {
	cfg    config.AuditConfig
	events chan SessionEvent
	done   chan struct{}
	send   sendFunc

	mu     sync.RWMutex
	closed bool

	// owned by the run goroutine
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher starts the delivery goroutine. Call Close to flush and stop it.
func NewPublisher(cfg config.AuditConfig) *Publisher {
	return newPublisher(cfg, nil)
}

func newPublisher(cfg config.AuditConfig, send sendFunc) *Publisher {
	if cfg.Buffer < 1 {
		cfg.Buffer = 1
	}
	p := &Publisher{
		cfg:    cfg,
		events: make(chan SessionEvent, cfg.Buffer),
		done:   make(chan struct{}),
		send:   send,
	}
	if p.send == nil {
		p.send = p.publishAMQP
	}
	go p.run()
	return p
}

// Publish enqueues ev without waiting for the broker.
func (p *Publisher) Publish(_ context.Context, ev SessionEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
	default:
		log.Warn().Str("event", string(ev.Type)).Msg("audit buffer full, event dropped")
	}
}

// Close stops accepting events and waits for the buffer to drain or ctx to end.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	defer p.reset()
	for ev := range p.events {
		body, err := json.Marshal(ev)
		if err != nil {
			log.Error().Err(err).Msg("audit: marshal event failed")
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.send(ctx, body); err != nil {
			log.Error().Err(err).Str("event", string(ev.Type)).Msg("audit: publish failed")
		}
		cancel()
	}
}

// publishAMQP sends one persistent message, redialing once on failure.
func (p *Publisher) publishAMQP(ctx context.Context, body []byte) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = p.ensureChannel(ctx); err != nil {
			if ctx.Err() != nil {
				return err
			}
			continue
		}
		err = p.ch.PublishWithContext(ctx,
			"",          // default exchange
			p.cfg.Queue, // routing key = queue name
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now().UTC(),
				Body:         body,
			})
		if err == nil {
			return nil
		}
		p.reset()
	}
	return err
}

func (p *Publisher) ensureChannel(ctx context.Context) error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.reset()
	timeout := p.cfg.DialTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); timeout <= 0 || left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return fmt.Errorf("dial broker: %w", context.DeadlineExceeded)
	}
	conn, err := dialBroker(p.cfg.URL, timeout)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("channel open: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

// dialBroker bounds both the TCP connect and the AMQP handshake by timeout.
func dialBroker(url string, timeout time.Duration) (*amqp.Connection, error) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
