package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/altbank/corebank/internal/infra/cache"
)

// KYCClient asks the customer/KYC collaborator whether a customer's KYC
// is approved. Responses are cached: approval status changes rarely and
// Activate is on a hot admin path. When no endpoint is configured every
// customer is treated as approved (development mode).
type KYCClient struct {
	httpClient *http.Client
	baseURL    string
	cache      *cache.InMemory[bool]
	logger     *zap.Logger
}

// NewKYCClient creates a KYC collaborator client.
func NewKYCClient(httpClient *http.Client, baseURL string, approvalCache *cache.InMemory[bool], logger *zap.Logger) *KYCClient {
	return &KYCClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cache:      approvalCache,
		logger:     logger,
	}
}

type kycResponse struct {
	CustomerID string `json:"customer_id"`
	Approved   bool   `json:"approved"`
}

// IsApproved reports whether the customer's KYC is approved.
func (c *KYCClient) IsApproved(ctx context.Context, customerID string) (bool, error) {
	if c.baseURL == "" {
		return true, nil
	}

	if approved, ok := c.cache.Get(customerID); ok {
		return approved, nil
	}

	url := fmt.Sprintf("%s/v1/customers/%s/kyc", c.baseURL, customerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if res.StatusCode >= 400 {
		return false, fmt.Errorf("kyc service responded %d", res.StatusCode)
	}

	var out kycResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return false, err
	}

	c.cache.Set(customerID, out.Approved)
	return out.Approved, nil
}
