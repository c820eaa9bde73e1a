package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/innkeep/hotel-system/internal/core/ports"
	"github.com/innkeep/hotel-system/internal/infrastructure/mail"
	"github.com/innkeep/hotel-system/internal/pkg/metrics"
	"github.com/innkeep/hotel-system/pkg/logger"
)

const (
	defaultWorkers  = 4
	channelBuffer   = 256
	deliveryTimeout = 15 * time.Second
)

var (
	// ErrQueueFull is returned by Send when the recipient's worker channel is at capacity.
	ErrQueueFull = errors.New("notification queue full")
	// ErrStopped is returned by Send once Stop has been called.
	ErrStopped = errors.New("notification dispatcher stopped")
)

// Message is one queued notification.
type Message struct {
	ID       string
	To       string
	Template ports.Template
	Params   map[string]string
}

// Dispatcher implements ports.Notifier by handing messages to a fixed set of
// workers. Messages for one recipient always land on the same worker, so a
// newer verification code is never delivered before an older one.
//
// The dispatcher owns its lifetime: workers run until Stop, independent of any
// request or signal context, so mail queued during shutdown is still sent.
type Dispatcher struct {
	workers   []chan Message
	renderer  *mail.Renderer
	transport mail.Transport
	log       zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

var _ ports.Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, renderer *mail.Renderer, transport mail.Transport, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		workers:   make([]chan Message, numWorkers),
		renderer:  renderer,
		transport: transport,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
	for i := range d.workers {
		d.workers[i] = make(chan Message, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines.
func (d *Dispatcher) Start() {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(i, ch)
	}
}

// Stop refuses new messages and waits for the workers to drain what is queued.
// When ctx ends first, in-flight deliveries are cancelled and ctx.Err() is
// returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()
	defer d.cancel()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send enqueues a notification without waiting for delivery.
func (d *Dispatcher) Send(_ context.Context, to string, tmpl ports.Template, params map[string]string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}
	msg := Message{ID: uuid.NewString(), To: to, Template: tmpl, Params: params}
	idx := d.shardIndex(to)
	select {
	case d.workers[idx] <- msg:
		metrics.NotificationQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return nil
	default:
		return ErrQueueFull
	}
}

// shardIndex maps a recipient deterministically to a worker index.
func (d *Dispatcher) shardIndex(to string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(to))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(id int, ch <-chan Message) {
	defer d.wg.Done()
	depth := metrics.NotificationQueueDepth.WithLabelValues(strconv.Itoa(id))
	for msg := range ch {
		depth.Set(float64(len(ch)))
		d.deliver(d.ctx, id, msg)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, worker int, msg Message) {
	log := d.log.With().
		Str("message_id", msg.ID).
		Str("template", string(msg.Template)).
		Int("worker_id", worker).
		Str("to", logger.Redact(msg.To)).
		Logger()

	email, err := d.renderer.Render(msg.To, msg.Template, msg.Params)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(msg.Template), "failed").Inc()
		log.Error().Err(err).Msg("notification render failed")
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	providerID, err := d.transport.Deliver(sendCtx, email)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(msg.Template), "failed").Inc()
		log.Error().Err(err).Msg("notification delivery failed")
		return
	}
	metrics.NotificationsTotal.WithLabelValues(string(msg.Template), "sent").Inc()
	log.Debug().Str("provider_id", providerID).Msg("notification delivered")
}
