package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"polar-bridge-relayer/internal/domain/oracle"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// Source is one upstream price feed.
type Source interface {
	Name() string
	Fetch(ctx context.Context, asset string) (oracle.Price, error)
}

// CoinGecko resolves asset symbols to CoinGecko ids and fetches spot
// prices in the configured quote currency.
type CoinGecko struct {
	baseURL string
	quote   string // e.g. "inr"
	ids     map[string]string
	client  *http.Client
}

func NewCoinGecko(quote string, ids map[string]string) *CoinGecko {
	norm := make(map[string]string, len(ids))
	for k, v := range ids {
		norm[strings.ToUpper(k)] = v
	}
	return &CoinGecko{
		baseURL: defaultBaseURL,
		quote:   strings.ToLower(quote),
		ids:     norm,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SetBaseURL points the source at a different endpoint; tests only.
func (c *CoinGecko) SetBaseURL(u string) { c.baseURL = u }

func (c *CoinGecko) Name() string { return "coingecko" }

func (c *CoinGecko) Fetch(ctx context.Context, asset string) (oracle.Price, error) {
	id, ok := c.ids[strings.ToUpper(asset)]
	if !ok {
		return oracle.Price{}, fmt.Errorf("no coingecko id mapped for asset %q", asset)
	}

	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", c.quote)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return oracle.Price{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return oracle.Price{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return oracle.Price{}, fmt.Errorf("coingecko: unexpected status %d", resp.StatusCode)
	}

	// {"stellar":{"inr":18.92}}
	var payload map[string]map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return oracle.Price{}, err
	}
	raw, ok := payload[id][c.quote]
	if !ok {
		return oracle.Price{}, fmt.Errorf("coingecko: no %s quote for %s", c.quote, id)
	}
	value, err := decimal.NewFromString(raw.String())
	if err != nil || value.Sign() <= 0 {
		return oracle.Price{}, fmt.Errorf("coingecko: bad price %q for %s", raw, id)
	}
	return oracle.Price{Asset: strings.ToUpper(asset), Value: value, AsOf: time.Now().UTC()}, nil
}
