package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/distro_backend/appctx"
)

var (
	ContextKeyActorId       = appctx.ContextKeyActorId
	ContextKeyActorName     = appctx.ContextKeyActorName
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetActorIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyActorId)
}

func GetActorNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyActorName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetActorIdInContext(ctx context.Context, actorId int) context.Context {
	return appctx.Set(ctx, ContextKeyActorId, actorId)
}

func SetActorNameInContext(ctx context.Context, actorName string) context.Context {
	return appctx.Set(ctx, ContextKeyActorName, actorName)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
