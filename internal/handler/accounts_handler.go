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
// Accounts — lifecycle, lookup, holds
// ============================================================

func openAccountHandler(svc *service.AccountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts")
		defer span.End()

		var req domain.OpenAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("customer.id", req.CustomerID))

		account, err := svc.Open(ctx, &req, OperatorFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, account)
	}
}

func getAccountHandler(svc *service.AccountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountID}")
		defer span.End()

		account, err := svc.Get(ctx, chi.URLParam(r, "accountID"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func getAccountByNumberHandler(svc *service.AccountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/by-number/{accountNumber}")
		defer span.End()

		account, err := svc.GetByNumber(ctx, chi.URLParam(r, "accountNumber"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func listAccountsHandler(svc *service.AccountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/customers/{customerID}/accounts")
		defer span.End()

		accounts, err := svc.List(ctx, chi.URLParam(r, "customerID"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if accounts == nil {
			accounts = []domain.Account{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
	}
}

// accountActionHandler covers the body-less lifecycle transitions.
func accountActionHandler(svc *service.AccountService, action string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountID}/"+action)
		defer span.End()

		accountID := chi.URLParam(r, "accountID")
		actor := OperatorFromContext(ctx)

		var (
			account *domain.Account
			err     error
		)
		switch action {
		case "activate":
			account, err = svc.Activate(ctx, accountID, actor)
		case "unfreeze":
			account, err = svc.Unfreeze(ctx, accountID, actor)
		case "close":
			account, err = svc.Close(ctx, accountID, actor)
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func freezeAccountHandler(svc *service.AccountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountID}/freeze")
		defer span.End()

		var body struct {
			Reason string `json:"reason"`
		}
		// The reason is optional; an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&body)

		account, err := svc.Freeze(ctx, chi.URLParam(r, "accountID"), body.Reason, OperatorFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}
