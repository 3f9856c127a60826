package zalopay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ReturnCodeSuccess is the gateway's return code for an accepted order or a
// successfully settled transaction.
const ReturnCodeSuccess = 1

// CreateOrderResponse is the gateway's reply to a create-order call.
type CreateOrderResponse struct {
	ReturnCode       int    `json:"return_code"`
	ReturnMessage    string `json:"return_message"`
	SubReturnCode    int    `json:"sub_return_code"`
	SubReturnMessage string `json:"sub_return_message"`
	OrderURL         string `json:"order_url"`
	ZpTransToken     string `json:"zp_trans_token"`
}

// Accepted reports whether the gateway accepted the order.
func (r *CreateOrderResponse) Accepted() bool {
	return r.ReturnCode == ReturnCodeSuccess
}

// CallbackPayload is the structured content of a callback's data string.
// Only the fields the reconciler needs are modeled; the gateway sends more.
type CallbackPayload struct {
	AppID      int    `json:"app_id"`
	AppTransID string `json:"app_trans_id"`
	AppUser    string `json:"app_user"`
	Amount     int64  `json:"amount"`
	ZpTransID  int64  `json:"zp_trans_id"`
	ReturnCode int    `json:"return_code"`
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// Client submits signed orders to the gateway's create-order endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a gateway client with a bounded request timeout.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CreateOrder submits a signed order. The order travels as query parameters,
// which is the v2 endpoint's accepted form. A transport failure or a non-200
// status is an error; a decoded response with a non-success return code is
// returned to the caller to interpret.
func (c *Client) CreateOrder(ctx context.Context, order *Order) (*CreateOrderResponse, error) {
	q := url.Values{}
	q.Set("app_id", order.AppID)
	q.Set("app_trans_id", order.AppTransID)
	q.Set("app_user", order.AppUser)
	q.Set("app_time", strconv.FormatInt(order.AppTime, 10))
	q.Set("amount", strconv.FormatInt(order.Amount, 10))
	q.Set("item", order.Item)
	q.Set("embed_data", order.EmbedData)
	q.Set("description", order.Description)
	q.Set("bank_code", order.BankCode)
	q.Set("callback_url", order.CallbackURL)
	q.Set("mac", order.Mac)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build create-order request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit order to gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var out CreateOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	return &out, nil
}
