package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/altbank/corebank/internal/domain"
	"github.com/altbank/corebank/internal/service"
)

// ============================================================
// Holds — earmarked funds
// ============================================================

func holdHandler(accounts *service.AccountService, ledger *service.Ledger, place bool, logger *zap.Logger) http.HandlerFunc {
	route := "POST /v1/accounts/{accountID}/holds"
	if !place {
		route = "POST /v1/accounts/{accountID}/holds/release"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), route)
		defer span.End()

		var req domain.HoldRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		accountID := chi.URLParam(r, "accountID")
		actor := OperatorFromContext(ctx)

		// The hold amount is parsed against the account currency.
		account, err := accounts.Get(ctx, accountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		amount, err := domain.NewMoney(req.Amount, account.Currency)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var updated *domain.Account
		if place {
			updated, err = ledger.Hold(ctx, accountID, amount, actor)
		} else {
			updated, err = ledger.ReleaseHold(ctx, accountID, amount, actor)
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}
