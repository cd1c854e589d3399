package live

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/relvacode/iso8601"

	"optiontrader/internal/domain/valueobject"
)

// ClientConfig parametrizes the REST client. Grounded on the teacher's
// exchanges/binance.Client construction (base URL, timeout, retry
// count), generalized from Binance's HMAC-signed key/secret scheme to
// a plain API-key header (APIKey is sent as X-API-Key; APISecret is
// not used by any request) since this runtime's exchange has no
// on-chain signing leg (see DESIGN.md's "dropped teacher dependencies").
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Timeout    time.Duration
	RetryCount int
	DryRun     bool
}

// Client is the REST leg of the live gateway: reference data, account
// state, and order entry/cancellation, all rate-limited and retried.
type Client struct {
	http   *resty.Client
	rl     *RateLimiter
	dryRun bool
	logger *slog.Logger
}

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.RetryCount
	if retries <= 0 {
		retries = 3
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-API-Key", cfg.APIKey)

	return &Client{http: httpClient, rl: NewRateLimiter(), dryRun: cfg.DryRun, logger: logger}
}

type contractParamsResponse struct {
	Symbol         string   `json:"symbol"`
	Size           float64  `json:"size"`
	PriceTick      float64  `json:"price_tick"`
	MinVolume      float64  `json:"min_volume"`
	MaxVolume      *float64 `json:"max_volume"`
	StopSupported  bool     `json:"stop_supported"`
	NetPosition    bool     `json:"net_position"`
}

// ContractParams fetches exchange-side contract terms for one symbol,
// satisfying gateway.MarketDataGateway.
func (c *Client) ContractParams(ctx context.Context, symbol string) (valueobject.ContractParams, error) {
	if err := c.rl.Query.Wait(ctx); err != nil {
		return valueobject.ContractParams{}, err
	}

	var result contractParamsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&result).
		Get("/contracts")
	if err != nil {
		return valueobject.ContractParams{}, fmt.Errorf("live gateway: contract params: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return valueobject.ContractParams{}, fmt.Errorf("live gateway: contract params: status %d: %s", resp.StatusCode(), resp.String())
	}

	return valueobject.ContractParams{
		Symbol: result.Symbol, Size: result.Size, PriceTick: result.PriceTick,
		MinVolume: result.MinVolume, MaxVolume: result.MaxVolume,
		StopSupported: result.StopSupported, NetPosition: result.NetPosition,
	}, nil
}

type accountResponse struct {
	AccountID string  `json:"account_id"`
	Balance   float64 `json:"balance"`
	Available float64 `json:"available"`
	Frozen    float64 `json:"frozen"`
}

// QueryAccount satisfies gateway.AccountGateway.
func (c *Client) QueryAccount(ctx context.Context) (valueobject.AccountSnapshot, error) {
	if err := c.rl.Query.Wait(ctx); err != nil {
		return valueobject.AccountSnapshot{}, err
	}

	var result accountResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&result).Get("/account")
	if err != nil {
		return valueobject.AccountSnapshot{}, fmt.Errorf("live gateway: query account: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return valueobject.AccountSnapshot{}, fmt.Errorf("live gateway: query account: status %d: %s", resp.StatusCode(), resp.String())
	}

	return valueobject.AccountSnapshot{
		AccountID: result.AccountID, Balance: result.Balance,
		Available: result.Available, Frozen: result.Frozen,
	}, nil
}

type positionResponse struct {
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"`
	Volume    float64 `json:"volume"`
	Frozen    float64 `json:"frozen"`
	Price     float64 `json:"price"`
	PnL       float64 `json:"pnl"`
	YdVolume  float64 `json:"yd_volume"`
}

// QueryPositions satisfies gateway.AccountGateway.
func (c *Client) QueryPositions(ctx context.Context) ([]valueobject.PositionSnapshot, error) {
	if err := c.rl.Query.Wait(ctx); err != nil {
		return nil, err
	}

	var results []positionResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&results).Get("/positions")
	if err != nil {
		return nil, fmt.Errorf("live gateway: query positions: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("live gateway: query positions: status %d: %s", resp.StatusCode(), resp.String())
	}

	out := make([]valueobject.PositionSnapshot, len(results))
	for i, r := range results {
		out[i] = valueobject.PositionSnapshot{
			Symbol: r.Symbol, Direction: valueobject.PositionDirection(r.Direction),
			Volume: r.Volume, Frozen: r.Frozen, Price: r.Price, PnL: r.PnL, YdVolume: r.YdVolume,
		}
	}
	return out, nil
}

type optionContractResponse struct {
	Symbol       string  `json:"symbol"`
	Underlying   string  `json:"underlying"`
	Type         string  `json:"type"`
	Strike       float64 `json:"strike"`
	ExpiryUnix   int64   `json:"expiry_unix"`
	BidPrice     float64 `json:"bid_price"`
	BidVolume    int     `json:"bid_volume"`
	AskPrice     float64 `json:"ask_price"`
	AskVolume    int     `json:"ask_volume"`
	DaysToExpiry int     `json:"days_to_expiry"`
}

// OptionChain fetches the full listed-option chain for an underlying
// symbol, satisfying execution.ChainProvider.
func (c *Client) OptionChain(ctx context.Context, underlyingSymbol string) ([]valueobject.OptionContract, error) {
	if err := c.rl.Query.Wait(ctx); err != nil {
		return nil, err
	}

	var results []optionContractResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("underlying", underlyingSymbol).
		SetResult(&results).
		Get("/options/chain")
	if err != nil {
		return nil, fmt.Errorf("live gateway: option chain: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("live gateway: option chain: status %d: %s", resp.StatusCode(), resp.String())
	}

	out := make([]valueobject.OptionContract, len(results))
	for i, r := range results {
		out[i] = valueobject.OptionContract{
			Symbol: r.Symbol, Underlying: r.Underlying, Type: valueobject.OptionType(r.Type),
			Strike: r.Strike, ExpiryUnix: r.ExpiryUnix, BidPrice: r.BidPrice, BidVolume: r.BidVolume,
			AskPrice: r.AskPrice, AskVolume: r.AskVolume, DaysToExpiry: r.DaysToExpiry,
		}
	}
	return out, nil
}

type orderRequest struct {
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"`
	Offset    string  `json:"offset"`
	Volume    int     `json:"volume"`
	Price     float64 `json:"price"`
	Type      string  `json:"type"`
}

type orderResponse struct {
	VtOrderID string `json:"vt_order_id"`
	SubmitAt  string `json:"submit_at"`
}

// SubmitOrder satisfies gateway.TradeExecutionGateway. In dry-run mode
// it mints a synthetic order id without calling the exchange, the same
// no-network-call simulation the teacher's
// internal/paper_trading.PaperTradingService performs for order entry.
func (c *Client) SubmitOrder(ctx context.Context, instruction valueobject.OrderInstruction) (string, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would submit order", "instruction", instruction.String())
		return fmt.Sprintf("dry-run-%s-%d", instruction.Symbol, time.Now().UnixNano()), nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return "", err
	}

	req := orderRequest{
		Symbol: instruction.Symbol, Direction: string(instruction.Direction),
		Offset: string(instruction.Offset), Volume: instruction.Volume,
		Price: instruction.Price, Type: string(instruction.Type),
	}

	var result orderResponse
	resp, err := c.http.R().SetContext(ctx).SetBody(req).SetResult(&result).Post("/orders")
	if err != nil {
		return "", fmt.Errorf("live gateway: submit order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("live gateway: submit order: status %d: %s", resp.StatusCode(), resp.String())
	}
	if result.SubmitAt != "" {
		if _, err := iso8601.ParseString(result.SubmitAt); err != nil {
			c.logger.Warn("live gateway: order ack carried an unparsable timestamp", "value", result.SubmitAt, "error", err)
		}
	}
	return result.VtOrderID, nil
}

// CancelOrder satisfies gateway.TradeExecutionGateway.
func (c *Client) CancelOrder(ctx context.Context, vtOrderID string) error {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel order", "vt_order_id", vtOrderID)
		return nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.http.R().SetContext(ctx).SetQueryParam("vt_order_id", vtOrderID).Delete("/orders")
	if err != nil {
		return fmt.Errorf("live gateway: cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("live gateway: cancel order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
