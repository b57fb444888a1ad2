package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"BasketCore/internal/ledger"
)

// HTTPOracle reads measured component balances and basket valuations from an
// external oracle service over HTTP/JSON. Balances and valuations are
// versioned inputs: the core consumes whatever the oracle reports and never
// computes them itself.
//
// Endpoints:
//
//	GET {base}/v1/balances/{basket_id}/{component}   -> {"value": "<decimal>"}
//	GET {base}/v1/valuations/{basket_id}/{reserve}   -> {"value": "<decimal>"}
type HTTPOracle struct {
	baseURL string
	client  *http.Client
}

func NewHTTPOracle(baseURL string, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// BalanceOf implements ledger.BalanceOracle.
func (o *HTTPOracle) BalanceOf(basketID uuid.UUID, component ledger.Address) (*big.Int, error) {
	return o.fetch(fmt.Sprintf("%s/v1/balances/%s/%s",
		o.baseURL, basketID, url.PathEscape(string(component))))
}

// Valuation implements core.ValuationOracle.
func (o *HTTPOracle) Valuation(basketID uuid.UUID, reserveAsset ledger.Address) (*big.Int, error) {
	return o.fetch(fmt.Sprintf("%s/v1/valuations/%s/%s",
		o.baseURL, basketID, url.PathEscape(string(reserveAsset))))
}

type valueResponse struct {
	Value string `json:"value"`
}

func (o *HTTPOracle) fetch(endpoint string) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("oracle request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle fetch %s: status %d", endpoint, resp.StatusCode)
	}

	var body valueResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("oracle decode %s: %w", endpoint, err)
	}

	value, ok := new(big.Int).SetString(body.Value, 10)
	if !ok {
		return nil, fmt.Errorf("oracle value %q is not a decimal", body.Value)
	}
	return value, nil
}
