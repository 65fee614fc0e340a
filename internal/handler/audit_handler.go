package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/altbank/corebank/internal/domain"
	"github.com/altbank/corebank/internal/service"
)

// ============================================================
// Audit — read-only trail queries
// ============================================================

func auditByRecordHandler(svc *service.AuditService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/audit/{model}/{recordID}")
		defer span.End()

		entries, err := svc.ListByRecord(ctx, chi.URLParam(r, "model"), chi.URLParam(r, "recordID"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if entries == nil {
			entries = []domain.AuditLogEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	}
}

func auditByAccountHandler(svc *service.AuditService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountID}/audit")
		defer span.End()

		from, to, err := parseTimeWindow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		page, pageSize := parsePagination(r)

		entries, err := svc.ListByAccount(ctx, chi.URLParam(r, "accountID"), from, to, page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if entries == nil {
			entries = []domain.AuditLogEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"entries":   entries,
			"page":      page,
			"page_size": pageSize,
		})
	}
}
