package push

import (
	"context"

	"telecare-sos/pkg/logger"

	"github.com/google/uuid"
)

// LogProvider records notifications instead of delivering them. Used when no
// push backend is configured.
type LogProvider struct {
	logger *logger.Logger
}

func NewLogProvider(log *logger.Logger) *LogProvider {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogProvider{logger: log}
}

func (l *LogProvider) Name() string {
	return "log"
}

func (l *LogProvider) SendNotification(ctx context.Context, request *NotificationRequest) (*NotificationResponse, error) {
	id := uuid.NewString()
	l.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"message_id": id,
		"title":      request.Title,
		"body":       request.Body,
		"priority":   request.Priority,
	}).Info("Local notification")

	return &NotificationResponse{
		MessageID: id,
		Success:   true,
		Token:     request.Token,
	}, nil
}
