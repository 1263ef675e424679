package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/direct-line/internal/service"
)

// StartNotificationWorker registers notification handlers and drains the
// delivery queue until ctx is cancelled. Wait on the returned group before exit.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, logger *zap.Logger) *sync.WaitGroup {
	var wg sync.WaitGroup
	if notificationService == nil {
		return &wg
	}
	notificationService.RegisterHandlers()

	wg.Add(1)
	go func() {
		defer wg.Done()
		queue := notificationService.Queue()
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-queue:
				if err := notificationService.Deliver(context.WithoutCancel(ctx), event); err != nil {
					logger.Debug("notification delivery incomplete",
						zap.String("event_type", string(event.Type)),
						zap.String("ticket_id", event.TicketID))
				}
			}
		}
	}()
	return &wg
}
