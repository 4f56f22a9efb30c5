package exchange

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chidi150c/currencycycle/internal/currency"
	"github.com/chidi150c/currencycycle/internal/feed"
	"github.com/chidi150c/currencycycle/internal/product"
)

// Coinbase is a Client backed by the Coinbase Advanced Trade REST API.
// Auth mirrors the teacher's broker: a fixed bearer token when
// supplied, else a short-lived RS256 JWT minted per request from an
// API key name and RSA private key (other key types are rejected).
type Coinbase struct {
	apiBase string
	hc      *http.Client

	keyName       string
	privateKeyPEM string
	bearerToken   string
}

// CoinbaseConfig carries Coinbase's auth and connection settings,
// populated from internal/config.
type CoinbaseConfig struct {
	APIBase       string
	KeyName       string
	PrivateKeyPEM string
	BearerToken   string
}

// NewCoinbase builds a Coinbase client from cfg, defaulting APIBase to
// the production Advanced Trade host.
func NewCoinbase(cfg CoinbaseConfig) *Coinbase {
	base := cfg.APIBase
	if base == "" {
		base = "https://api.coinbase.com"
	}
	return &Coinbase{
		apiBase:       strings.TrimRight(base, "/"),
		hc:            &http.Client{Timeout: 15 * time.Second},
		keyName:       strings.TrimSpace(cfg.KeyName),
		privateKeyPEM: normalizeMultiline(cfg.PrivateKeyPEM),
		bearerToken:   strings.TrimSpace(cfg.BearerToken),
	}
}

type cbProductBook struct {
	PriceBook struct {
		Bids []struct {
			Price string `json:"price"`
			Size  string `json:"size"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
			Size  string `json:"size"`
		} `json:"asks"`
	} `json:"pricebook"`
}

// GetSnapshot fetches the current best-effort book for productID from
// the product book endpoint, used to bootstrap a Book before the
// websocket feed takes over.
func (cb *Coinbase) GetSnapshot(ctx context.Context, productID string) (Snapshot, error) {
	u := fmt.Sprintf("%s/api/v3/brokerage/product_book?product_id=%s", cb.apiBase, url.QueryEscape(productID))
	var body cbProductBook
	if err := cb.doJSON(ctx, http.MethodGet, u, nil, &body); err != nil {
		return Snapshot{}, fmt.Errorf("exchange: coinbase snapshot %s: %w", productID, err)
	}
	snap := Snapshot{ProductID: productID}
	for _, b := range body.PriceBook.Bids {
		snap.Bids = append(snap.Bids, BookLevel{Price: b.Price, Size: b.Size})
	}
	for _, a := range body.PriceBook.Asks {
		snap.Asks = append(snap.Asks, BookLevel{Price: a.Price, Size: a.Size})
	}
	return snap, nil
}

type cbFill struct {
	TradeID   string `json:"trade_id"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
	Time      string `json:"trade_time"`
}

// GetTradeHistory fetches recent matches for productID since sinceUnix,
// used to bootstrap a Book's trade-history window.
func (cb *Coinbase) GetTradeHistory(ctx context.Context, productID string, sinceUnix int64) ([]feed.Event, error) {
	u := fmt.Sprintf("%s/api/v3/brokerage/products/%s/ticker?limit=200", cb.apiBase, url.PathEscape(productID))
	var body struct {
		Trades []cbFill `json:"trades"`
	}
	if err := cb.doJSON(ctx, http.MethodGet, u, nil, &body); err != nil {
		return nil, fmt.Errorf("exchange: coinbase trade history %s: %w", productID, err)
	}
	var out []feed.Event
	for _, f := range body.Trades {
		ts, err := time.Parse(time.RFC3339, f.Time)
		if err != nil || ts.Unix() < sinceUnix {
			continue
		}
		out = append(out, feed.Event{
			Type:      feed.EventMatch,
			ProductID: f.ProductID,
			OrderID:   f.TradeID,
			Side:      f.Side,
			Price:     f.Price,
			NewSize:   f.Size,
			Time:      ts,
		})
	}
	return out, nil
}

type cbOrderResponse struct {
	SuccessResponse struct {
		OrderID string `json:"order_id"`
	} `json:"success_response"`
	Success bool `json:"success"`
}

// PlaceOrder submits a maker (post-only) limit-GTC order.
func (cb *Coinbase) PlaceOrder(ctx context.Context, productID string, side product.Side, price, size decimal.Decimal) (PlacedOrder, error) {
	sideStr := "BUY"
	if side == product.Ask {
		sideStr = "SELL"
	}
	payload := map[string]any{
		"client_order_id": uuid.NewString(),
		"product_id":      productID,
		"side":            sideStr,
		"order_configuration": map[string]any{
			"limit_limit_gtc": map[string]any{
				"base_size":   size.String(),
				"limit_price": price.String(),
				"post_only":   true,
			},
		},
	}
	var resp cbOrderResponse
	u := fmt.Sprintf("%s/api/v3/brokerage/orders", cb.apiBase)
	if err := cb.doJSON(ctx, http.MethodPost, u, payload, &resp); err != nil {
		return PlacedOrder{}, fmt.Errorf("exchange: coinbase place order: %w", err)
	}
	if !resp.Success || resp.SuccessResponse.OrderID == "" {
		return PlacedOrder{}, errors.New("exchange: coinbase rejected order")
	}
	return PlacedOrder{OrderID: resp.SuccessResponse.OrderID, ProductID: productID, Side: side, Price: price, Size: size}, nil
}

// CancelOrder cancels one resting order.
func (cb *Coinbase) CancelOrder(ctx context.Context, _ string, orderID string) error {
	payload := map[string]any{"order_ids": []string{orderID}}
	u := fmt.Sprintf("%s/api/v3/brokerage/orders/batch_cancel", cb.apiBase)
	if err := cb.doJSON(ctx, http.MethodPost, u, payload, nil); err != nil {
		return fmt.Errorf("exchange: coinbase cancel order %s: %w", orderID, err)
	}
	return nil
}

type cbOpenOrder struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
}

// CancelAllOrders lists then cancels every open order, optionally
// filtered to productID.
func (cb *Coinbase) CancelAllOrders(ctx context.Context, productID string) error {
	u := fmt.Sprintf("%s/api/v3/brokerage/orders/historical/batch?order_status=OPEN", cb.apiBase)
	if productID != "" {
		u += "&product_id=" + url.QueryEscape(productID)
	}
	var body struct {
		Orders []cbOpenOrder `json:"orders"`
	}
	if err := cb.doJSON(ctx, http.MethodGet, u, nil, &body); err != nil {
		return fmt.Errorf("exchange: coinbase list open orders: %w", err)
	}
	var ids []string
	for _, o := range body.Orders {
		ids = append(ids, o.OrderID)
	}
	if len(ids) == 0 {
		return nil
	}
	payload := map[string]any{"order_ids": ids}
	cu := fmt.Sprintf("%s/api/v3/brokerage/orders/batch_cancel", cb.apiBase)
	if err := cb.doJSON(ctx, http.MethodPost, cu, payload, nil); err != nil {
		return fmt.Errorf("exchange: coinbase cancel all orders: %w", err)
	}
	return nil
}

type cbAccount struct {
	Currency         string `json:"currency"`
	AvailableBalance struct {
		Value string `json:"value"`
	} `json:"available_balance"`
	Hold struct {
		Value string `json:"value"`
	} `json:"hold"`
}

// GetBalances fetches account balances, keyed by currency, summing
// every account sharing a currency code the way the teacher's broker
// does.
func (cb *Coinbase) GetBalances(ctx context.Context) (map[currency.Currency]decimal.Decimal, error) {
	u := fmt.Sprintf("%s/api/v3/brokerage/accounts?limit=250", cb.apiBase)
	var body struct {
		Accounts []cbAccount `json:"accounts"`
	}
	if err := cb.doJSON(ctx, http.MethodGet, u, nil, &body); err != nil {
		return nil, fmt.Errorf("exchange: coinbase balances: %w", err)
	}
	out := make(map[currency.Currency]decimal.Decimal)
	for _, a := range body.Accounts {
		c, ok := currency.Parse(a.Currency)
		if !ok {
			continue
		}
		avail, err := decimal.NewFromString(a.AvailableBalance.Value)
		if err != nil {
			continue
		}
		hold, err := decimal.NewFromString(a.Hold.Value)
		if err != nil {
			hold = decimal.Zero
		}
		out[c] = out[c].Add(avail).Add(hold)
	}
	return out, nil
}

func (cb *Coinbase) doJSON(ctx context.Context, method, u string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "currencycycle/coinbase-go")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := cb.addAuth(req); err != nil {
		return err
	}
	res, err := cb.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%s %s: %d: %s", method, u, res.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func (cb *Coinbase) addAuth(req *http.Request) error {
	if cb.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+cb.bearerToken)
		return nil
	}
	if cb.keyName == "" || cb.privateKeyPEM == "" {
		return errors.New("exchange: coinbase auth not configured")
	}
	token, err := mintCoinbaseJWT(cb.keyName, cb.privateKeyPEM, 25*time.Second)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("CB-ACCESS-KEY", cb.keyName)
	return nil
}

func mintCoinbaseJWT(keyName, privatePEM string, ttl time.Duration) (string, error) {
	block, _ := pem.Decode([]byte(privatePEM))
	if block == nil {
		return "", errors.New("exchange: invalid coinbase private key (no PEM block)")
	}
	var priv *rsa.PrivateKey
	switch block.Type {
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return "", err
		}
		rsaKey, ok := k.(*rsa.PrivateKey)
		if !ok {
			return "", errors.New("exchange: coinbase private key is not RSA")
		}
		priv = rsaKey
	case "RSA PRIVATE KEY":
		k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return "", err
		}
		priv = k
	default:
		return "", fmt.Errorf("exchange: unsupported coinbase key type: %s", block.Type)
	}
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": keyName,
		"aud": "retail_rest_api",
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"nbf": now.Add(-5 * time.Second).Unix(),
		"jti": uuid.New().String(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return t.SignedString(priv)
}

func normalizeMultiline(s string) string {
	if strings.Contains(s, `\n`) {
		return strings.ReplaceAll(s, `\n`, "\n")
	}
	return s
}
