// Package zalopay implements the ZaloPay v2 order protocol: HMAC-SHA256
// signing of outgoing orders, verification of inbound callback payloads, and
// an HTTP client for the create-order endpoint.
package zalopay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Config carries the merchant credentials for one ZaloPay application.
// Key1 signs outgoing orders; Key2 verifies inbound callbacks. The two keys
// reflect the two trust directions of the protocol and are never
// interchangeable.
type Config struct {
	AppID       string
	Key1        string
	Key2        string
	Endpoint    string
	CallbackURL string
}

// Order is the create-order request payload. Field names follow the gateway's
// wire format.
type Order struct {
	AppID       string `json:"app_id"`
	AppTransID  string `json:"app_trans_id"`
	AppUser     string `json:"app_user"`
	AppTime     int64  `json:"app_time"` // unix milliseconds
	Amount      int64  `json:"amount"`
	Item        string `json:"item"`       // JSON-serialized item list
	EmbedData   string `json:"embed_data"` // JSON-serialized embed data
	Description string `json:"description"`
	BankCode    string `json:"bank_code"`
	CallbackURL string `json:"callback_url"`
	Mac         string `json:"mac"`
}

// CanonicalString returns the ordered, pipe-delimited concatenation the
// gateway expects under the order MAC. The field order is fixed by the
// protocol and must never change.
func (o *Order) CanonicalString() string {
	return strings.Join([]string{
		o.AppID,
		o.AppTransID,
		o.AppUser,
		fmt.Sprintf("%d", o.Amount),
		fmt.Sprintf("%d", o.AppTime),
		o.EmbedData,
		o.Item,
	}, "|")
}

// Sign computes the hex-encoded HMAC-SHA256 of data under key.
func Sign(key, data string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignOrder fills in the order's Mac from its canonical string and Key1.
func (c Config) SignOrder(o *Order) {
	o.Mac = Sign(c.Key1, o.CanonicalString())
}

// VerifyCallback reports whether mac is the correct signature for the raw
// callback data string under Key2. Comparison is constant time.
func (c Config) VerifyCallback(data, mac string) bool {
	expected := Sign(c.Key2, data)
	return hmac.Equal([]byte(expected), []byte(mac))
}
