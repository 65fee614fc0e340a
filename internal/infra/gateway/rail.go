// Package gateway holds clients for external collaborators: the payment
// rail for non-internal transfers, notification channel senders, and the
// KYC service. All of them are simulated endpoints behind real client
// plumbing (circuit breaker, retry, timeouts).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/altbank/corebank/internal/domain"
	"github.com/altbank/corebank/internal/infra/resilience"
)

// RailClient talks to the external payment rail used by rtgs/neft/imps/
// external transfers. When no endpoint is configured it simulates a
// successful rail, mirroring a gateway sandbox.
type RailClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewRailClient creates a rail gateway client. baseURL may be empty for
// simulated mode.
func NewRailClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *RailClient {
	return &RailClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

type railRequest struct {
	TransferNumber string `json:"transfer_number"`
	Rail           string `json:"rail"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Beneficiary    any    `json:"beneficiary,omitempty"`
}

type railResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// Send submits the transfer to the rail synchronously. A returned error
// means the rail rejected or failed the transfer.
func (c *RailClient) Send(ctx context.Context, transfer *domain.Transfer) (string, string, error) {
	if c.baseURL == "" {
		// Sandbox mode: accept everything, like the test rails do.
		ref := fmt.Sprintf("EXT-%s-%s", strings.ToUpper(string(transfer.Type)), uuid.New().String()[:8])
		c.logger.Debug("rail sandbox accepted transfer",
			zap.String("transfer_number", transfer.TransferNumber),
			zap.String("reference", ref),
		)
		return ref, "SUCCESS", nil
	}

	payload := railRequest{
		TransferNumber: transfer.TransferNumber,
		Rail:           string(transfer.Type),
		Amount:         transfer.Amount.Amount.String(),
		Currency:       transfer.Amount.Currency,
		Beneficiary:    transfer.Beneficiary,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("marshal rail request: %w", err)
	}

	var resp railResponse
	result, err := c.cb.Execute(func() (any, error) {
		var out railResponse
		retryErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			return c.post(ctx, body, &out)
		})
		return out, retryErr
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return "", "", &domain.ErrCircuitOpen{Service: "payment-rail"}
		}
		return "", "", &domain.ErrExternalService{Service: "payment-rail", Err: err}
	}
	resp = result.(railResponse)

	if resp.Status != "SUCCESS" {
		return resp.Reference, resp.Status, &domain.ErrExternalService{
			Service: "payment-rail",
			Err:     fmt.Errorf("rail returned status %q", resp.Status),
		}
	}
	return resp.Reference, resp.Status, nil
}

func (c *RailClient) post(ctx context.Context, body []byte, out *railResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return fmt.Errorf("rail responded %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// healthy is a cheap reachability probe for readiness checks.
func (c *RailClient) Healthy(ctx context.Context) bool {
	if c.baseURL == "" {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	res.Body.Close()
	return res.StatusCode < 500
}
