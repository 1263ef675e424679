package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/direct-line/internal/config"
	"github.com/spec-kit/direct-line/internal/events"
)

const notificationQueueSize = 256

// ErrNotificationQueueFull is returned when events arrive faster than they are delivered.
var ErrNotificationQueueFull = errors.New("notification queue full")

// EventPublisher forwards encoded events to an external channel.
type EventPublisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// NotificationService logs ticket events and forwards them to the configured
// Redis channel and webhook. Delivery happens off the request path.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  EventPublisher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	queue      chan events.Event
}

// NewNotificationService creates the service. publisher may be nil.
func NewNotificationService(dispatcher events.Dispatcher, publisher EventPublisher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
		cfg:        cfg,
		queue:      make(chan events.Event, notificationQueueSize),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
}

// Queue exposes pending events for the delivery worker.
func (n *NotificationService) Queue() <-chan events.Event {
	return n.queue
}

func (n *NotificationService) handleTicketCreated(_ context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.enqueue(event)
}

func (n *NotificationService) handleTicketStatusChanged(_ context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.enqueue(event)
}

func (n *NotificationService) enqueue(event events.Event) error {
	if n.publisher == nil && strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return nil
	}
	select {
	case n.queue <- event:
		return nil
	default:
		return ErrNotificationQueueFull
	}
}

// Deliver sends event to every configured sink. Each failure is logged and
// the joined errors returned.
func (n *NotificationService) Deliver(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	var errs []error
	if n.publisher != nil {
		if err := n.publisher.Publish(ctx, payload); err != nil {
			n.logger.Warn("redis event publish failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	if err := n.postWebhook(payload); err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("url", n.cfg.WebhookURL),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (n *NotificationService) postWebhook(payload []byte) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}

	timeout := time.Duration(n.cfg.WebhookTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	agent := fiber.Post(url)
	agent.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	agent.Body(payload)
	agent.Timeout(timeout)
	if err := agent.Parse(); err != nil {
		return err
	}

	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return fmt.Errorf("webhook responded with status %d", code)
	}
	return nil
}
