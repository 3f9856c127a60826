package zalopay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

var testConfig = Config{
	AppID:       "2553",
	Key1:        "order-signing-key",
	Key2:        "callback-verify-key",
	CallbackURL: "https://clinic.example.com/api/v1/payment/callback",
}

func TestOrder_CanonicalString(t *testing.T) {
	o := &Order{
		AppID:      "2553",
		AppTransID: "250101_123456789",
		AppUser:    "patient-1",
		AppTime:    1735700000000,
		Amount:     500000,
		Item:       "[]",
		EmbedData:  "{}",
	}

	got := o.CanonicalString()
	want := "2553|250101_123456789|patient-1|500000|1735700000000|{}|[]"
	if got != want {
		t.Errorf("canonical string mismatch:\n got  %s\n want %s", got, want)
	}
}

func TestSignOrder_Deterministic(t *testing.T) {
	o := &Order{
		AppID:      testConfig.AppID,
		AppTransID: "250101_1",
		AppUser:    "u",
		AppTime:    1,
		Amount:     100,
		Item:       "[]",
		EmbedData:  "{}",
	}
	testConfig.SignOrder(o)
	if o.Mac == "" {
		t.Fatal("expected mac to be set")
	}
	if o.Mac != Sign(testConfig.Key1, o.CanonicalString()) {
		t.Error("mac does not match recomputed signature")
	}

	again := *o
	again.Mac = ""
	testConfig.SignOrder(&again)
	if again.Mac != o.Mac {
		t.Error("signing is not deterministic")
	}
}

func TestVerifyCallback(t *testing.T) {
	data := `{"app_trans_id":"250101_1","zp_trans_id":99,"return_code":1}`
	mac := Sign(testConfig.Key2, data)

	if !testConfig.VerifyCallback(data, mac) {
		t.Error("expected valid mac to verify")
	}
	if testConfig.VerifyCallback(data, Sign(testConfig.Key1, data)) {
		t.Error("mac computed with the order key must not verify callbacks")
	}
}

func TestVerifyCallback_SingleByteTamper(t *testing.T) {
	data := `{"app_trans_id":"250101_1","zp_trans_id":99,"return_code":1}`
	mac := Sign(testConfig.Key2, data)

	for i := 0; i < len(data); i++ {
		tampered := []byte(data)
		tampered[i] ^= 0x01
		if testConfig.VerifyCallback(string(tampered), mac) {
			t.Fatalf("tampered byte %d still verified", i)
		}
	}
}

func TestClient_CreateOrder_Accepted(t *testing.T) {
	var gotTransID, gotMac string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		gotTransID = r.URL.Query().Get("app_trans_id")
		gotMac = r.URL.Query().Get("mac")
		json.NewEncoder(w).Encode(CreateOrderResponse{
			ReturnCode: 1,
			OrderURL:   "https://sb-openapi.zalopay.vn/pay/abc",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	order := &Order{
		AppID:      testConfig.AppID,
		AppTransID: "250101_42",
		AppUser:    "patient-1",
		AppTime:    1,
		Amount:     500000,
		Item:       "[]",
		EmbedData:  "{}",
	}
	testConfig.SignOrder(order)

	resp, err := client.CreateOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Accepted() {
		t.Error("expected order to be accepted")
	}
	if resp.OrderURL == "" {
		t.Error("expected order url")
	}
	if gotTransID != "250101_42" {
		t.Errorf("gateway did not receive app_trans_id, got %q", gotTransID)
	}
	if gotMac != order.Mac {
		t.Error("gateway did not receive the order mac")
	}
}

func TestClient_CreateOrder_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(CreateOrderResponse{
			ReturnCode:    2,
			ReturnMessage: "invalid mac",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	resp, err := client.CreateOrder(context.Background(), &Order{AppID: "2553"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Accepted() {
		t.Error("expected rejection")
	}
}

func TestClient_CreateOrder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.CreateOrder(context.Background(), &Order{AppID: "2553"})
	if err == nil {
		t.Error("expected error for non-200 gateway response")
	}
}
