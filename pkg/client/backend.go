package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"agent-chat/pkg/logger"
	"agent-chat/pkg/parser"
	"agent-chat/pkg/types"
)

// DefaultHTTPTimeout bounds every call to an agent when no http.Client is given
const DefaultHTTPTimeout = 30 * time.Second

// APIError is returned when the agent answers with a non-2xx status
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("agent API error (status %d): %s", e.StatusCode, e.Message)
}

// BackendClient talks to one agent's HTTP API
type BackendClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        *slog.Logger
}

// NewBackendClient creates a client for the agent at endpoint
func NewBackendClient(endpoint string, httpClient *http.Client) (*BackendClient, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid agent endpoint %q: %w", endpoint, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid agent endpoint %q: scheme and host are required", endpoint)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	return &BackendClient{
		baseURL:    parsed,
		httpClient: httpClient,
		log:        logger.Named("backend").With("endpoint", parsed.String()),
	}, nil
}

// Endpoint returns the agent base URL
func (c *BackendClient) Endpoint() string {
	return c.baseURL.String()
}

type historyResponse struct {
	Messages []json.RawMessage `json:"messages"`
}

// FetchHistory retrieves the agent's chat transcript
func (c *BackendClient) FetchHistory(ctx context.Context) ([]types.Message, error) {
	var resp historyResponse
	if err := c.get(ctx, "/messages", &resp); err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	messages, err := types.DecodeMessages(resp.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}

type promptRequest struct {
	Prompt        promptBody `json:"prompt"`
	ChainID       string     `json:"chain_id"`
	WalletAddress string     `json:"wallet_address"`
}

type promptBody struct {
	Role    types.Role `json:"role"`
	Content string     `json:"content"`
}

// PostMessage sends a user message and returns the refreshed transcript.
// A failed post is only logged: the agent's history is authoritative, so the
// transcript is re-fetched either way. When the re-fetch fails too, history
// plus the user message is returned along with the error.
func (c *BackendClient) PostMessage(ctx context.Context, history []types.Message, text string, chainID int64, address string) ([]types.Message, error) {
	req := promptRequest{
		Prompt:        promptBody{Role: types.RoleUser, Content: text},
		ChainID:       strconv.FormatInt(chainID, 10),
		WalletAddress: address,
	}
	if err := c.post(ctx, "/", req, nil); err != nil {
		c.log.Warn("posting message failed", "error", err)
	}

	refreshed, err := c.FetchHistory(ctx)
	if err != nil {
		fallback := make([]types.Message, 0, len(history)+1)
		fallback = append(fallback, history...)
		fallback = append(fallback, types.UserMessage{Content: text})
		return fallback, err
	}
	return refreshed, nil
}

type approveRequest struct {
	ChainID      int64  `json:"chain_id"`
	TokenAddress string `json:"tokenAddress"`
	Amount       string `json:"amount"`
}

type approveResponse struct {
	Data struct {
		Response *types.ApproveTx `json:"response"`
	} `json:"data"`
}

// FetchApproval requests an ERC-20 approval transaction for amount (a decimal
// token amount, scaled by 10^18 before sending)
func (c *BackendClient) FetchApproval(ctx context.Context, chainID int64, token, amount string) (*types.ApproveTx, error) {
	scaled, err := parser.ScaleTokenAmount(amount)
	if err != nil {
		return nil, err
	}

	var resp approveResponse
	req := approveRequest{ChainID: chainID, TokenAddress: token, Amount: scaled.String()}
	if err := c.post(ctx, "/approve", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to get approval payload: %w", err)
	}
	if resp.Data.Response == nil {
		return nil, fmt.Errorf("empty approval payload")
	}
	return resp.Data.Response, nil
}

// FetchSwapPayload requests the router swap transaction. req.Amount is a
// decimal token amount and is scaled by 10^18 before sending.
func (c *BackendClient) FetchSwapPayload(ctx context.Context, req types.SwapTxRequest) (*types.SwapTx, error) {
	scaled, err := parser.ScaleTokenAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	req.Amount = scaled.String()

	var resp types.SwapTx
	if err := c.post(ctx, "/swap", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to get swap payload: %w", err)
	}
	if resp.Tx.To == "" {
		return nil, fmt.Errorf("swap payload has no target address")
	}
	return &resp, nil
}

type statusRequest struct {
	ChainID       int64            `json:"chain_id"`
	WalletAddress string           `json:"wallet_address"`
	Flag          types.SwapStatus `json:"flag"`
}

type statusResponse struct {
	Role    types.Role `json:"role"`
	Content string     `json:"content"`
}

// ReportSwapStatus tells the agent how a swap ended and returns its reply
func (c *BackendClient) ReportSwapStatus(ctx context.Context, chainID int64, wallet string, status types.SwapStatus) (types.AssistantMessage, error) {
	var resp statusResponse
	req := statusRequest{ChainID: chainID, WalletAddress: wallet, Flag: status}
	if err := c.post(ctx, "/tx_status", req, &resp); err != nil {
		return types.AssistantMessage{}, fmt.Errorf("failed to report swap status %s: %w", status, err)
	}
	return types.AssistantMessage{Content: resp.Content}, nil
}

func (c *BackendClient) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *BackendClient) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *BackendClient) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *BackendClient) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug("agent call", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = apiErr.Detail
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
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
