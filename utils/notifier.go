package utils

import (
	"context"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/distro_backend/config"
)

// Notifier is the success/failure surfacing collaborator. The default
// implementation logs; deployments can plug an SMS/app sink behind it.
type Notifier interface {
	Success(ctx context.Context, event string, message string)
	Failure(ctx context.Context, event string, err error)
}

type logNotifier struct{}

func NewLogNotifier() Notifier {
	return logNotifier{}
}

func (logNotifier) Success(ctx context.Context, event string, message string) {
	correlationId, _ := GetCorrelationIdFromContext(ctx)
	config.GetLogger().WithFields(logrus.Fields{
		"event":         event,
		"correlationId": correlationId,
	}).Info(message)
}

func (logNotifier) Failure(ctx context.Context, event string, err error) {
	correlationId, _ := GetCorrelationIdFromContext(ctx)
	config.GetLogger().WithFields(logrus.Fields{
		"event":         event,
		"correlationId": correlationId,
	}).Error(err.Error())
}
