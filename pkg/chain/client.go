package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cuemby/oracle-monitor/pkg/types"
)

// REST paths, relative to the API base
const (
	pathValidators    = "/cosmos/staking/v1beta1/validators"
	pathMissCounter   = "/symphony/oracle/v1beta1/validators/%s/miss"
	pathFeeder        = "/symphony/oracle/v1beta1/validators/%s/feeder"
	pathBalanceDenom  = "/cosmos/bank/v1beta1/balances/%s/by_denom"
	pathExchangeRates = "/symphony/oracle/v1beta1/denoms/exchange_rates"

	bondedStatus = "BOND_STATUS_BONDED"
	pageLimit    = 200
	maxBodyBytes = 8 << 20
)

// ErrTransientFetch marks a failed request against the chain API
var ErrTransientFetch = errors.New("transient fetch error")

// Client is a thin JSON client for the chain's REST API
type Client struct {
	base   string
	client *http.Client
}

// Opts configures a Client
type Opts struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient creates a new REST client
func NewClient(o Opts) *Client {
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}
	return &Client{
		base:   strings.TrimRight(o.BaseURL, "/"),
		client: client,
	}
}

// statusError is returned for non-200 responses
type statusError struct {
	Path       string
	StatusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// getJSON performs a GET request and decodes the JSON body into out
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", ErrTransientFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", ErrTransientFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return fmt.Errorf("%w: %w", ErrTransientFetch, &statusError{Path: path, StatusCode: resp.StatusCode})
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode %s: %v", ErrTransientFetch, path, err)
	}
	return nil
}

type validatorsResponse struct {
	Validators []struct {
		OperatorAddress string `json:"operator_address"`
		Tokens          string `json:"tokens"`
		Description     struct {
			Moniker string `json:"moniker"`
		} `json:"description"`
	} `json:"validators"`
	Pagination struct {
		NextKey string `json:"next_key"`
	} `json:"pagination"`
}

// BondedValidators returns the bonded validator roster, following pagination
func (c *Client) BondedValidators(ctx context.Context) ([]types.Validator, error) {
	var (
		validators []types.Validator
		nextKey    string
	)

	for page := 0; ; page++ {
		query := url.Values{}
		query.Set("status", bondedStatus)
		query.Set("pagination.limit", strconv.Itoa(pageLimit))
		if nextKey != "" {
			query.Set("pagination.key", nextKey)
		}

		var resp validatorsResponse
		if err := c.getJSON(ctx, pathValidators, query, &resp); err != nil {
			return nil, fmt.Errorf("failed to fetch validators (page %d): %w", page, err)
		}

		for _, v := range resp.Validators {
			if v.OperatorAddress == "" {
				continue
			}
			moniker := strings.TrimSpace(v.Description.Moniker)
			if moniker == "" {
				moniker = types.UnknownMoniker
			}
			power, err := parseAmount(v.Tokens)
			if err != nil {
				return nil, fmt.Errorf("%w: validator %s has invalid tokens %q", ErrTransientFetch, v.OperatorAddress, v.Tokens)
			}
			validators = append(validators, types.Validator{
				OperatorAddress: v.OperatorAddress,
				Moniker:         moniker,
				VotingPower:     power,
			})
		}

		if resp.Pagination.NextKey == "" || resp.Pagination.NextKey == nextKey {
			break
		}
		nextKey = resp.Pagination.NextKey
	}

	return validators, nil
}

// MissCounter returns the oracle miss counter of a validator
func (c *Client) MissCounter(ctx context.Context, valoper string) (uint64, error) {
	var resp struct {
		MissCounter string `json:"miss_counter"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf(pathMissCounter, url.PathEscape(valoper)), nil, &resp); err != nil {
		return 0, err
	}
	if resp.MissCounter == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(resp.MissCounter, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid miss counter %q", ErrTransientFetch, resp.MissCounter)
	}
	return n, nil
}

// FeederLink returns the feeder delegation of a validator. Request failures
// are folded into a FeederFetchError link so callers never confuse them with
// a validator that has no feeder.
func (c *Client) FeederLink(ctx context.Context, valoper string) types.FeederLink {
	var resp struct {
		FeederAddr string `json:"feeder_addr"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf(pathFeeder, url.PathEscape(valoper)), nil, &resp); err != nil {
		return types.FeederFetchError(err.Error())
	}
	addr := strings.TrimSpace(resp.FeederAddr)
	if addr == "" {
		return types.FeederNone()
	}
	return types.FeederLinked(addr)
}

// Balance returns an account's balance in the given denom, 0 if it holds none
func (c *Client) Balance(ctx context.Context, address, denom string) (uint64, error) {
	var resp struct {
		Balance *struct {
			Denom  string `json:"denom"`
			Amount string `json:"amount"`
		} `json:"balance"`
	}
	query := url.Values{}
	query.Set("denom", denom)
	if err := c.getJSON(ctx, fmt.Sprintf(pathBalanceDenom, url.PathEscape(address)), query, &resp); err != nil {
		return 0, err
	}
	if resp.Balance == nil || resp.Balance.Amount == "" {
		return 0, nil
	}
	n, err := parseAmount(resp.Balance.Amount)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid balance %q", ErrTransientFetch, resp.Balance.Amount)
	}
	return n, nil
}

// ExchangeRates returns the oracle exchange rate table
func (c *Client) ExchangeRates(ctx context.Context) (types.ExchangeRateTable, error) {
	var resp struct {
		ExchangeRates []struct {
			Denom  string `json:"denom"`
			Amount string `json:"amount"`
		} `json:"exchange_rates"`
	}
	if err := c.getJSON(ctx, pathExchangeRates, nil, &resp); err != nil {
		return nil, err
	}

	rates := make(types.ExchangeRateTable, len(resp.ExchangeRates))
	for _, r := range resp.ExchangeRates {
		rate, err := decimal.NewFromString(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid rate %q for %s", ErrTransientFetch, r.Amount, r.Denom)
		}
		rates[r.Denom] = rate
	}
	return rates, nil
}

// parseAmount parses an integer token amount. Amounts are sometimes rendered
// as decimals ("100.000000000000000000"); the fractional part is dropped.
func parseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", s)
	}
	bi := d.Truncate(0).BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("amount %s overflows uint64", s)
	}
	return bi.Uint64(), nil
}
