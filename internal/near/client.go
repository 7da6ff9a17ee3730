package near

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultRPCURL = "https://rpc.testnet.near.org"

	errUnknownAccount = "UNKNOWN_ACCOUNT"
)

// implicit accounts are the hex encoded ed25519 public key and exist as soon
// as they receive funds
var implicitAccount = regexp.MustCompile(`^[0-9a-f]{64}$`)

type ClientConfig struct {
	URL     string
	Timeout time.Duration
}

// Client is a minimal NEAR JSON-RPC client for read-only queries.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	log        *slog.Logger
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is the structured error returned by nearcore.
type RPCError struct {
	Name    string `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	Cause   struct {
		Name string          `json:"name"`
		Info json.RawMessage `json:"info"`
	} `json:"cause"`
}

func (e *RPCError) Error() string {
	if e.Cause.Name != "" {
		return fmt.Sprintf("rpc error %s: %s", e.Cause.Name, e.Message)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func NewClient(config *ClientConfig) *Client {
	if config.URL == "" {
		config.URL = DefaultRPCURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 12 * time.Second
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		log:        slog.With("component", "near-rpc"),
	}
}

// AccountExists reports whether the account is registered on the network.
func (c *Client) AccountExists(ctx context.Context, accountID string) (bool, error) {
	if implicitAccount.MatchString(accountID) {
		return true, nil
	}

	var account json.RawMessage
	err := c.call(ctx, "query", map[string]any{
		"request_type": "view_account",
		"finality":     "final",
		"account_id":   accountID,
	}, &account)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.Cause.Name == errUnknownAccount {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

type callFunctionResult struct {
	Result []int    `json:"result"`
	Logs   []string `json:"logs"`
	Error  string   `json:"error"`
}

// ViewFunction runs a view method of a contract and decodes its JSON result
// into out.
func (c *Client) ViewFunction(ctx context.Context, contractID, method string,
	args any, out any) error {

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal %s args: %w", method, err)
	}

	var result callFunctionResult
	err = c.call(ctx, "query", map[string]any{
		"request_type": "call_function",
		"finality":     "final",
		"account_id":   contractID,
		"method_name":  method,
		"args_base64":  base64.StdEncoding.EncodeToString(argsJSON),
	}, &result)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	// older nodes report execution errors inside the result
	if result.Error != "" {
		return fmt.Errorf("%s: %s", method, result.Error)
	}

	raw := make([]byte, len(result.Result))
	for i, b := range result.Result {
		raw[i] = byte(b)
	}

	err = json.Unmarshal(raw, out)
	if err != nil {
		return fmt.Errorf("decode %s result %q: %w", method, string(raw), err)
	}

	return nil
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      "dontcare",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL,
		bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}

	var decoded rpcResponse
	if err := json.Unmarshal(b, &decoded); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
		return fmt.Errorf("decode json: %w", err)
	}

	if decoded.Error != nil {
		return decoded.Error
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	return json.Unmarshal(decoded.Result, out)
}
