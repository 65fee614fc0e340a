package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/altbank/corebank/internal/domain"
	"github.com/altbank/corebank/internal/infra/observability"
	"github.com/altbank/corebank/internal/infra/resilience"
	"github.com/altbank/corebank/internal/port"
)

var notifTracer = otel.Tracer("service/notifications")

// NotificationService queues delivery requests and dispatches them over
// per-channel senders. Dispatch is fire-and-forget relative to the
// financial operation that raised the notification: delivery failures
// are recorded on the notification, never propagated to the caller.
type NotificationService struct {
	store   port.NotificationStore
	senders map[domain.NotificationChannel]port.ChannelSender
	sem     *semaphore.Weighted
	retry   resilience.Config
	audit   *AuditService
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewNotificationService creates the gateway. retry.MaxRetries bounds
// delivery attempts beyond the first; retry.MaxConcurrency bounds
// in-flight dispatches.
func NewNotificationService(store port.NotificationStore, senders map[domain.NotificationChannel]port.ChannelSender, retry resilience.Config, audit *AuditService, metrics *observability.Metrics, logger *zap.Logger) *NotificationService {
	maxConc := retry.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 8
	}
	return &NotificationService{
		store:   store,
		senders: senders,
		sem:     semaphore.NewWeighted(int64(maxConc)),
		retry:   retry,
		audit:   audit,
		metrics: metrics,
		logger:  logger,
	}
}

// Request records a notification and dispatches it in the background.
// The returned notification is in queued status; its final state is
// visible via Get/List once dispatch settles.
func (s *NotificationService) Request(ctx context.Context, customerID string, channel domain.NotificationChannel, subject, message string, priority domain.NotificationPriority) (*domain.Notification, error) {
	ctx, span := notifTracer.Start(ctx, "NotificationService.Request")
	defer span.End()
	span.SetAttributes(attribute.String("notification.channel", string(channel)))

	if !channel.Valid() {
		return nil, &domain.ErrValidation{Field: "channel", Message: "unknown channel: " + string(channel)}
	}
	if customerID == "" {
		return nil, &domain.ErrValidation{Field: "customer_id", Message: "required"}
	}
	if priority == "" {
		priority = domain.PriorityNormal
	}

	n := &domain.Notification{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Channel:    channel,
		Subject:    subject,
		Message:    message,
		Priority:   priority,
		Status:     domain.NotifQueued,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}

	// Detach from the request context so an early HTTP response does
	// not cancel delivery.
	go s.deliver(context.Background(), n)

	return n, nil
}

// Retry re-dispatches a failed notification. Queued and sent
// notifications are rejected.
func (s *NotificationService) Retry(ctx context.Context, notificationID, actor string) (*domain.Notification, error) {
	ctx, span := notifTracer.Start(ctx, "NotificationService.Retry")
	defer span.End()

	n, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.Status != domain.NotifFailed {
		return nil, &domain.ErrInvalidState{Entity: "notification", ID: n.ID, Status: string(n.Status), Action: "retry"}
	}

	n.Status = domain.NotifQueued
	n.ErrorMessage = ""
	if err := s.store.UpdateNotification(ctx, n); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, domain.AuditNotify, "notification", n.ID, "",
		"manual retry requested", actor, domain.SeverityInfo)

	go s.deliver(context.Background(), n)
	return n, nil
}

// Get returns one notification by ID.
func (s *NotificationService) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	return s.store.GetNotification(ctx, notificationID)
}

// List returns a customer's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, customerID string, page, pageSize int) ([]domain.Notification, error) {
	return s.store.ListNotifications(ctx, customerID, page, pageSize)
}

// deliver runs the bounded, retried send for one notification and
// persists the outcome. Safe to call concurrently.
func (s *NotificationService) deliver(ctx context.Context, n *domain.Notification) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.logger.Warn("notification dispatch aborted", zap.String("notification_id", n.ID), zap.Error(err))
		return
	}
	defer s.sem.Release(1)

	ctx, span := notifTracer.Start(ctx, "NotificationService.deliver")
	defer span.End()

	sender, ok := s.senders[n.Channel]
	if !ok {
		s.settle(ctx, n, "", &domain.ErrValidation{Field: "channel", Message: "no sender configured: " + string(n.Channel)})
		return
	}

	attempt := 0
	var gatewayRef string
	err := resilience.RetryWithBackoff(ctx, s.retry, func() error {
		attempt++
		if attempt > 1 {
			n.RetryCount++
			s.metrics.IncrNotificationRetry()
		}
		ref, sendErr := sender.Send(ctx, n)
		if sendErr != nil {
			s.logger.Warn("notification send attempt failed",
				zap.String("notification_id", n.ID),
				zap.String("channel", string(n.Channel)),
				zap.Int("attempt", attempt),
				zap.Error(sendErr))
			return sendErr
		}
		gatewayRef = ref
		return nil
	})

	s.settle(ctx, n, gatewayRef, err)
}

// settle writes the final delivery state after dispatch.
func (s *NotificationService) settle(ctx context.Context, n *domain.Notification, gatewayRef string, err error) {
	if err == nil {
		now := time.Now().UTC()
		n.Status = domain.NotifSent
		n.SentAt = &now
		n.GatewayReference = gatewayRef
		n.ErrorMessage = ""
		s.metrics.IncrNotification("sent")
	} else {
		n.Status = domain.NotifFailed
		n.ErrorMessage = err.Error()
		s.metrics.IncrNotification("failed")
		s.audit.Record(ctx, domain.AuditNotify, "notification", n.ID, "",
			"delivery failed after retries: "+err.Error(), "system", domain.SeverityWarning)
	}

	if updateErr := s.store.UpdateNotification(ctx, n); updateErr != nil {
		s.logger.Error("failed to persist notification outcome",
			zap.String("notification_id", n.ID), zap.Error(updateErr))
	}
}
