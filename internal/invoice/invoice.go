// Package invoice implements spec.md §4.9's InvoiceDispatcher: a
// background worker pool, grounded on webhooks.WebhookService's
// queue-plus-worker shape, that renders an invoice PDF and emails it
// with its own retry policy independent of the request that enqueued
// it.
package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"core/internal/catalog"
	"core/internal/email"
	"core/internal/eventbus"
	"core/internal/metrics"
	"core/internal/tracing"
)

// Dispatcher is the contract the orchestrator depends on.
type Dispatcher interface {
	Enqueue(orderID string)
}

// orderCreatedEvent is the eventbus.Event payload announced after a
// successful dispatch.
type orderCreatedEvent struct {
	OrderID string `json:"order_id"`
}

// Service is the default Dispatcher: a fixed worker pool draining a
// buffered channel, mirroring webhooks.WebhookService's worker()/
// deliver() split.
type Service struct {
	orders   catalog.OrderRepository
	sender   email.Sender
	announce eventbus.Publisher
	policy   RetryPolicy
	queue    chan string
	done     chan struct{}
}

// NewService starts workers goroutines. announce may be a
// *eventbus.NoOpPublisher when AMQP_URL is unset, per spec.md §6.10's
// additive-fan-out wording.
func NewService(orders catalog.OrderRepository, sender email.Sender, announce eventbus.Publisher, workers int) *Service {
	s := &Service{
		orders:   orders,
		sender:   sender,
		announce: announce,
		policy:   DefaultRetryPolicy(),
		queue:    make(chan string, 1000),
		done:     make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go s.worker()
	}
	return s
}

// Enqueue implements Dispatcher. It never blocks the caller; if the
// queue is full the task is dropped and logged, since spec.md §4.8
// step 5 forbids the orchestrator from waiting on background work.
func (s *Service) Enqueue(orderID string) {
	select {
	case s.queue <- orderID:
	default:
		log.Error().Str("order_id", orderID).Msg("invoice: queue full, dropping dispatch")
	}
}

// Stop drains no further tasks; in-flight tasks keep running.
func (s *Service) Stop() {
	close(s.done)
}

func (s *Service) worker() {
	for {
		select {
		case <-s.done:
			return
		case orderID := <-s.queue:
			s.dispatch(orderID)
		}
	}
}

// dispatch runs spec.md §4.9's six steps on a fresh context and its
// own database session (s.orders is a pool-backed repository, never
// the caller's request-scoped one).
func (s *Service) dispatch(orderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	order, err := s.orders.GetOrderWithProducts(ctx, orderID)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("invoice: load order failed")
		s.audit(orderID, fmt.Errorf("load order: %w", err))
		return
	}

	pdfBytes, err := renderPDF(order)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("invoice: render pdf failed")
		s.audit(orderID, fmt.Errorf("render pdf: %w", err))
		return
	}

	if err := s.sendWithRetry(ctx, order, pdfBytes); err != nil {
		s.audit(orderID, err)
		return
	}

	if s.announce != nil {
		event := eventbus.Event{Type: "order.created", Payload: orderCreatedEvent{OrderID: orderID}}
		publishCtx, span := tracing.MessageSpan(ctx, "order.created", "publish", orderID)
		err := s.announce.Publish(publishCtx, "order.created", event)
		span.End()
		if err != nil {
			log.Warn().Err(err).Str("order_id", orderID).Msg("invoice: amqp announce failed")
		}
	}

	// No object storage is wired for rendered PDFs (step 6's URL is
	// optional); the PDF only ever exists as the emailed attachment.
}

func (s *Service) sendWithRetry(ctx context.Context, order *catalog.Order, pdfBytes []byte) error {
	subject := "Invoice " + order.ID
	body := "<p>Thank you for your order " + order.ID + ". Your invoice is attached.</p>"
	attachments := []email.Attachment{{
		Filename:    order.ID + ".pdf",
		ContentType: "application/pdf",
		Data:        pdfBytes,
	}}

	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		lastErr = s.sender.Send(order.CustomerEmail, subject, body, attachments)
		if lastErr == nil {
			metrics.RecordInvoiceSent()
			return nil
		}
		log.Warn().Err(lastErr).Str("order_id", order.ID).Int("attempt", attempt).Msg("invoice: send failed")
		if attempt == s.policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("send email: %w", ctx.Err())
		case <-time.After(s.policy.delayAfter(attempt)):
		}
	}
	return fmt.Errorf("send email after %d attempts: %w", s.policy.MaxAttempts, lastErr)
}

// audit records a final failure without mutating order status, per
// spec.md §4.9 step 5. No audit-log sink exists in the teacher
// lineage, so a structured log entry tagged audit=true is the sink.
func (s *Service) audit(orderID string, err error) {
	metrics.RecordInvoiceFailed()
	log.Error().Bool("audit", true).Str("order_id", orderID).Err(err).Msg("invoice: dispatch failed permanently")
}
