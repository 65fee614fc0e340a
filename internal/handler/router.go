// Package handler exposes the REST surface: routing, middleware,
// request decoding and the domain-error to HTTP-status mapping.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/altbank/corebank/internal/infra/observability"
	"github.com/altbank/corebank/internal/service"
)

var tracer = otel.Tracer("handler")

// Services bundles the service-layer collaborators the router wires up.
type Services struct {
	Accounts     *service.AccountService
	Ledger       *service.Ledger
	Transactions *service.TransactionEngine
	Transfers    *service.TransferService
	Notifier     *service.NotificationService
	Audit        *service.AuditService
	Auth         *service.AuthService
}

// NewRouter creates the HTTP router with all routes and middleware.
// Everything under /v1 except login requires an operator token.
func NewRouter(svcs Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svcs.Accounts))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.Handler())

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Authentication (public)
		// =============================================
		r.Post("/auth/login", authLoginHandler(svcs.Auth, logger))

		// =============================================
		// Everything else requires an operator token
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svcs.Auth, logger))

			// Accounts
			r.Post("/accounts", openAccountHandler(svcs.Accounts, logger))
			r.Get("/accounts/{accountID}", getAccountHandler(svcs.Accounts, logger))
			r.Get("/accounts/by-number/{accountNumber}", getAccountByNumberHandler(svcs.Accounts, logger))
			r.Post("/accounts/{accountID}/activate", accountActionHandler(svcs.Accounts, "activate", logger))
			r.Post("/accounts/{accountID}/freeze", freezeAccountHandler(svcs.Accounts, logger))
			r.Post("/accounts/{accountID}/unfreeze", accountActionHandler(svcs.Accounts, "unfreeze", logger))
			r.Post("/accounts/{accountID}/close", accountActionHandler(svcs.Accounts, "close", logger))
			r.Get("/customers/{customerID}/accounts", listAccountsHandler(svcs.Accounts, logger))

			// Holds
			r.Post("/accounts/{accountID}/holds", holdHandler(svcs.Accounts, svcs.Ledger, true, logger))
			r.Post("/accounts/{accountID}/holds/release", holdHandler(svcs.Accounts, svcs.Ledger, false, logger))

			// Transactions
			r.Post("/transactions", postTransactionHandler(svcs.Transactions, logger))
			r.Get("/transactions/{transactionID}", getTransactionHandler(svcs.Transactions, logger))
			r.Post("/transactions/{transactionID}/complete", completeTransactionHandler(svcs.Transactions, logger))
			r.Post("/transactions/{transactionID}/cancel", cancelTransactionHandler(svcs.Transactions, logger))
			r.Post("/transactions/{transactionID}/reverse", reverseTransactionHandler(svcs.Transactions, logger))
			r.Get("/accounts/{accountID}/statement", statementHandler(svcs.Transactions, logger))

			// Transfers
			r.Post("/transfers", createTransferHandler(svcs.Transfers, logger))
			r.Get("/transfers/{transferID}", getTransferHandler(svcs.Transfers, logger))
			r.Post("/transfers/{transferID}/submit", submitTransferHandler(svcs.Transfers, logger))
			r.Post("/transfers/{transferID}/approve", approveTransferHandler(svcs.Transfers, logger))
			r.Post("/transfers/{transferID}/reject", rejectTransferHandler(svcs.Transfers, logger))
			r.Post("/transfers/{transferID}/cancel", cancelTransferHandler(svcs.Transfers, logger))
			r.Get("/accounts/{accountID}/transfers", listTransfersHandler(svcs.Transfers, logger))

			// Audit
			r.Get("/audit/{model}/{recordID}", auditByRecordHandler(svcs.Audit, logger))
			r.Get("/accounts/{accountID}/audit", auditByAccountHandler(svcs.Audit, logger))

			// Notifications
			r.Get("/customers/{customerID}/notifications", listNotificationsHandler(svcs.Notifier, logger))
			r.Get("/notifications/{notificationID}", getNotificationHandler(svcs.Notifier, logger))
			r.Post("/notifications/{notificationID}/retry", retryNotificationHandler(svcs.Notifier, logger))

			// Engine metrics snapshot
			r.Get("/metrics/engine", engineMetricsHandler(metrics))
		})
	})

	return r
}

// ============================================================
// Health & readiness
// ============================================================

func healthzHandler(accounts *service.AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		_, err := accounts.List(r.Context(), "health-check")
		status := "healthy"
		if err != nil {
			status = "degraded"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": status,
			"services": []map[string]any{
				{"name": "corebank-api", "status": "healthy"},
				{"name": "store", "status": status, "latency_ms": time.Since(start).Milliseconds()},
			},
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func engineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
