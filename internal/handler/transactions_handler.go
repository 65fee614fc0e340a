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
// Transactions — posting, lifecycle, statements
// ============================================================

func postTransactionHandler(svc *service.TransactionEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions")
		defer span.End()

		var req domain.PostTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(
			attribute.String("account.id", req.AccountID),
			attribute.String("transaction.type", string(req.Type)),
		)

		txn, err := svc.Post(ctx, &req, OperatorFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, txn)
	}
}

func getTransactionHandler(svc *service.TransactionEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions/{transactionID}")
		defer span.End()

		txn, err := svc.Get(ctx, chi.URLParam(r, "transactionID"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, txn)
	}
}

func completeTransactionHandler(svc *service.TransactionEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/{transactionID}/complete")
		defer span.End()

		txn, err := svc.Complete(ctx, chi.URLParam(r, "transactionID"), OperatorFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, txn)
	}
}

func cancelTransactionHandler(svc *service.TransactionEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/{transactionID}/cancel")
		defer span.End()

		txn, err := svc.Cancel(ctx, chi.URLParam(r, "transactionID"), OperatorFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, txn)
	}
}

func reverseTransactionHandler(svc *service.TransactionEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/{transactionID}/reverse")
		defer span.End()

		var body struct {
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		txn, err := svc.Reverse(ctx, chi.URLParam(r, "transactionID"), body.Reason, OperatorFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, txn)
	}
}

func statementHandler(svc *service.TransactionEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountID}/statement")
		defer span.End()

		from, to, err := parseTimeWindow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		page, pageSize := parsePagination(r)

		txns, err := svc.Statement(ctx, chi.URLParam(r, "accountID"), from, to, page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if txns == nil {
			txns = []domain.Transaction{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"transactions": txns,
			"page":         page,
			"page_size":    pageSize,
		})
	}
}
