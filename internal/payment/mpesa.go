package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// SandboxBaseURL is the Daraja sandbox host.
const SandboxBaseURL = "https://sandbox.safaricom.co.ke"

var eat = time.FixedZone("EAT", 3*60*60)

type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
}

// Mpesa starts Lipa na M-Pesa Online (STK push) payments through the Daraja API.
// Initiate returns once Safaricom accepts the request; the customer confirms on
// their phone and the result arrives later on the callback URL.
type Mpesa struct {
	client *http.Client
	cfg    MpesaConfig
	now    func() time.Time
}

func NewMpesa(cfg MpesaConfig) *Mpesa {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = SandboxBaseURL
	}
	return &Mpesa{
		client: &http.Client{Timeout: 30 * time.Second},
		cfg:    cfg,
		now:    time.Now,
	}
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

func (m *Mpesa) Initiate(ctx context.Context, req Request) (Result, error) {
	if req.Amount < 1 {
		return Result{}, fmt.Errorf("mpesa: amount must be at least 1 KES, got %d", req.Amount)
	}
	token, err := m.accessToken(ctx)
	if err != nil {
		return Result{}, err
	}

	ts := m.now().In(eat).Format("20060102150405")
	body := stkPushRequest{
		BusinessShortCode: m.cfg.ShortCode,
		Password:          base64.StdEncoding.EncodeToString([]byte(m.cfg.ShortCode + m.cfg.Passkey + ts)),
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount,
		PartyA:            req.Phone,
		PartyB:            m.cfg.ShortCode,
		PhoneNumber:       req.Phone,
		CallBackURL:       m.cfg.CallbackURL,
		AccountReference:  accountReference(req.OrderID),
		TransactionDesc:   "Order " + accountReference(req.OrderID),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("mpesa: encode stk push: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.cfg.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("mpesa: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("mpesa: stk push: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var out stkPushResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, fmt.Errorf("mpesa: decode stk push response (status=%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || out.ResponseCode != "0" {
		msg := out.ErrorMessage
		if msg == "" {
			msg = out.ResponseDescription
		}
		log.Printf("[mpesa] stk push rejected status=%d code=%s msg=%s", resp.StatusCode, out.ErrorCode, msg)
		return Result{}, fmt.Errorf("mpesa: stk push rejected: status=%d %s", resp.StatusCode, msg)
	}
	return Result{Reference: out.CheckoutRequestID, Message: out.CustomerMessage}, nil
}

func (m *Mpesa) accessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		m.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("mpesa: create token request: %w", err)
	}
	req.SetBasicAuth(m.cfg.ConsumerKey, m.cfg.ConsumerSecret)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("mpesa: token request: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mpesa: token request failed: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", fmt.Errorf("mpesa: decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("mpesa: empty access token")
	}
	return tok.AccessToken, nil
}

// Daraja caps AccountReference at 12 characters.
func accountReference(orderID string) string {
	ref := strings.ReplaceAll(orderID, "-", "")
	if len(ref) > 12 {
		ref = ref[:12]
	}
	return strings.ToUpper(ref)
}
