package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docflow/internal/config"
	"docflow/internal/reconcile"
	"docflow/internal/services"
)

const userAgent = "Docflow-Go/0.1.0"

// Client talks to the business application's automation endpoint over
// HTTP. Acquire opens a session bound to the configured environment;
// every later call carries the session token.
type Client struct {
	baseURL     string
	username    string
	password    string
	environment string
	httpClient  *http.Client

	sessionToken string
}

// NewClient builds a driver from configuration.
func NewClient(cfg *config.Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.Driver.BaseURL), "/")
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, "driver", "new", "driver base_url is required", nil)
	}

	timeout := time.Duration(cfg.Driver.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:     base,
		username:    cfg.Driver.Username,
		password:    cfg.Driver.Password,
		environment: cfg.Driver.Environment,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

type sessionRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Environment string `json:"environment,omitempty"`
}

type sessionResponse struct {
	Token string `json:"token"`
}

// Acquire opens a session with the application.
func (c *Client) Acquire(ctx context.Context) error {
	body := sessionRequest{
		Username:    c.username,
		Password:    c.password,
		Environment: c.environment,
	}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &resp); err != nil {
		return services.Wrap(services.ErrDriver, "driver", "acquire", "open session", err)
	}
	if resp.Token == "" {
		return services.Wrap(services.ErrDriver, "driver", "acquire", "session response missing token", nil)
	}
	c.sessionToken = resp.Token
	return nil
}

// Release closes the session. A client that never acquired is a no-op.
func (c *Client) Release(ctx context.Context) error {
	if c.sessionToken == "" {
		return nil
	}
	token := c.sessionToken
	c.sessionToken = ""
	if err := c.do(ctx, http.MethodDelete, "/api/sessions/"+url.PathEscape(token), nil, nil); err != nil {
		return services.Wrap(services.ErrDriver, "driver", "release", "close session", err)
	}
	return nil
}

type actionRequest struct {
	Phase  string            `json:"phase"`
	Key    string            `json:"key"`
	Fields map[string]string `json:"fields,omitempty"`
}

type actionResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Reference string `json:"reference,omitempty"`
}

// PerformUnitAction executes one operation inside the open session.
func (c *Client) PerformUnitAction(ctx context.Context, action UnitAction) (UnitResult, error) {
	if c.sessionToken == "" {
		return UnitResult{}, services.Wrap(services.ErrDriver, "driver", "unit_action", "no open session", nil)
	}

	body := actionRequest{Phase: action.Phase, Key: action.Key, Fields: action.Fields}
	var resp actionResponse
	if err := c.do(ctx, http.MethodPost, "/api/actions", body, &resp); err != nil {
		return UnitResult{}, services.Wrap(services.ErrDriver, "driver", "unit_action", action.Key, err)
	}
	return UnitResult{Success: resp.Success, Message: resp.Message, Reference: resp.Reference}, nil
}

type ledgerEntryDTO struct {
	Position int    `json:"position"`
	Document string `json:"document"`
	Debit    string `json:"debit"`
	Credit   string `json:"credit"`
	Tag      string `json:"tag"`
	Ref      string `json:"ref"`
}

// LedgerEntries reads the lines of an account view. Amounts arrive in
// display form and are parsed locally.
func (c *Client) LedgerEntries(ctx context.Context, account string) ([]reconcile.Entry, error) {
	if c.sessionToken == "" {
		return nil, services.Wrap(services.ErrDriver, "driver", "ledger_entries", "no open session", nil)
	}

	var dtos []ledgerEntryDTO
	path := "/api/accounts/" + url.PathEscape(account) + "/entries"
	if err := c.do(ctx, http.MethodGet, path, nil, &dtos); err != nil {
		return nil, services.Wrap(services.ErrDriver, "driver", "ledger_entries", account, err)
	}

	entries := make([]reconcile.Entry, 0, len(dtos))
	for _, dto := range dtos {
		entry := reconcile.Entry{
			Position: dto.Position,
			Document: dto.Document,
			Tag:      dto.Tag,
			Ref:      dto.Ref,
		}
		if dto.Debit != "" {
			if amount, err := reconcile.ParseAmount(dto.Debit); err == nil {
				entry.Debit = amount
			}
		}
		if dto.Credit != "" {
			if amount, err := reconcile.ParseAmount(dto.Credit); err == nil {
				entry.Credit = amount
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

type reconcileRequest struct {
	Positions []int `json:"positions"`
}

// MarkReconciled letters the given line positions of an account.
func (c *Client) MarkReconciled(ctx context.Context, account string, positions []int) error {
	if c.sessionToken == "" {
		return services.Wrap(services.ErrDriver, "driver", "mark_reconciled", "no open session", nil)
	}

	path := "/api/accounts/" + url.PathEscape(account) + "/reconcile"
	if err := c.do(ctx, http.MethodPost, path, reconcileRequest{Positions: positions}, nil); err != nil {
		return services.Wrap(services.ErrDriver, "driver", "mark_reconciled", account, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.sessionToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
