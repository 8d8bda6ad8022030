package worker

import (
	"github.com/spec-kit/permit-lifecycle/internal/service"
)

// StartNotificationWorker registers notification handlers and returns the func that removes them.
func StartNotificationWorker(notificationService *service.NotificationService) func() {
	if notificationService == nil {
		return func() {}
	}
	notificationService.RegisterHandlers()
	return notificationService.Close
}
