package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/altbank/corebank/internal/domain"
	"github.com/altbank/corebank/internal/service"
)

// ============================================================
// Transfers — draft, submit, approval, cancellation
// ============================================================

func createTransferHandler(svc *service.TransferService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transfers")
		defer span.End()

		var req domain.CreateTransferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(
			attribute.String("transfer.type", string(req.Type)),
			attribute.String("account.from", req.FromAccountID),
		)

		transfer, err := svc.Create(ctx, &req, OperatorFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, transfer)
	}
}

func getTransferHandler(svc *service.TransferService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transfers/{transferID}")
		defer span.End()

		transfer, err := svc.Get(ctx, chi.URLParam(r, "transferID"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, transfer)
	}
}

func submitTransferHandler(svc *service.TransferService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transfers/{transferID}/submit")
		defer span.End()

		transfer, err := svc.Submit(ctx, chi.URLParam(r, "transferID"), OperatorFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, transfer)
	}
}

func approveTransferHandler(svc *service.TransferService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transfers/{transferID}/approve")
		defer span.End()

		transfer, err := svc.Approve(ctx, chi.URLParam(r, "transferID"), OperatorFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, transfer)
	}
}

func rejectTransferHandler(svc *service.TransferService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transfers/{transferID}/reject")
		defer span.End()

		var body struct {
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Reason == "" {
			writeError(w, http.StatusBadRequest, "rejection reason is required")
			return
		}

		transfer, err := svc.Reject(ctx, chi.URLParam(r, "transferID"), body.Reason, OperatorFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, transfer)
	}
}

func cancelTransferHandler(svc *service.TransferService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transfers/{transferID}/cancel")
		defer span.End()

		transfer, err := svc.Cancel(ctx, chi.URLParam(r, "transferID"), OperatorFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, transfer)
	}
}

func listTransfersHandler(svc *service.TransferService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountID}/transfers")
		defer span.End()

		page, pageSize := parsePagination(r)
		transfers, err := svc.List(ctx, chi.URLParam(r, "accountID"), page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if transfers == nil {
			transfers = []domain.Transfer{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"transfers": transfers,
			"page":      page,
			"page_size": pageSize,
		})
	}
}
