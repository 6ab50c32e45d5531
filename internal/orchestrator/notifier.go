package orchestrator

import (
	"context"

	"credisense/internal/common/aws"
	"credisense/internal/common/errors"
	"credisense/internal/common/logger"
	"credisense/internal/models"
)

// Notifier fans a notification out beyond the session flash. Delivery
// failures never affect the submission outcome.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, n models.Notification) error
}

// Publisher is satisfied by *aws.SNSClient.
type Publisher interface {
	PublishMessage(ctx context.Context, topicARN, subject, message string, attrs map[string]string) (string, error)
}

var _ Publisher = (*aws.SNSClient)(nil)

type SNSNotifier struct {
	publisher Publisher
	topicARN  string
	logger    logger.Logger
}

func NewSNSNotifier(publisher Publisher, topicARN string, log logger.Logger) *SNSNotifier {
	return &SNSNotifier{
		publisher: publisher,
		topicARN:  topicARN,
		logger:    log.WithFields(map[string]interface{}{"component": "sns-notifier"}),
	}
}

func (n *SNSNotifier) Notify(ctx context.Context, sessionID string, note models.Notification) error {
	id, err := n.publisher.PublishMessage(ctx, n.topicARN, note.Title, note.Description, map[string]string{
		"severity":       note.Severity,
		"sessionId":      sessionID,
		"notificationId": note.ID,
	})
	if err != nil {
		return errors.NewNotificationFailedError("sns", err)
	}

	n.logger.Debug("notification published", map[string]interface{}{
		"messageId": id,
		"title":     note.Title,
	})
	return nil
}
