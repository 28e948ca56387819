package worker

import (
	"github.com/spec-kit/course-platform/internal/service"
)

// StartNotificationWorker subscribes the notification service to content and account events.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
