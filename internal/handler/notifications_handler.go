package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/altbank/corebank/internal/domain"
	"github.com/altbank/corebank/internal/service"
)

// ============================================================
// Notifications — inspection and manual retry
// ============================================================

func listNotificationsHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/customers/{customerID}/notifications")
		defer span.End()

		page, pageSize := parsePagination(r)
		notifications, err := svc.List(ctx, chi.URLParam(r, "customerID"), page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if notifications == nil {
			notifications = []domain.Notification{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"notifications": notifications,
			"page":          page,
			"page_size":     pageSize,
		})
	}
}

func getNotificationHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/notifications/{notificationID}")
		defer span.End()

		notification, err := svc.Get(ctx, chi.URLParam(r, "notificationID"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, notification)
	}
}

func retryNotificationHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/notifications/{notificationID}/retry")
		defer span.End()

		notification, err := svc.Retry(ctx, chi.URLParam(r, "notificationID"), OperatorFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, notification)
	}
}
