package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"investwallet/internal/config"

	"github.com/shopspring/decimal"
)

// PSPClient 支付服务商 HTTP 客户端
// 对接托管方 REST API：/v1/accounts、/v1/deposits、/v1/withdrawals、/v1/transactions/{id}
type PSPClient struct {
	apiURL        string
	apiKey        string
	apiSecret     string
	webhookSecret string
	httpClient    *http.Client
}

// NewPaymentGateway 根据配置选择真实客户端或模拟器
func NewPaymentGateway(cfg *config.ProviderConfig) PaymentGateway {
	if cfg.Simulated || cfg.APIKey == "" {
		log.Println("[PSP] 未配置服务商凭证，使用模拟器")
		return NewPaymentSimulator(cfg.WebhookSecret)
	}
	return &PSPClient{
		apiURL:        cfg.APIURL,
		apiKey:        cfg.APIKey,
		apiSecret:     cfg.APISecret,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *PSPClient) doJSON(ctx context.Context, method, path string, reqBody, respBody interface{}) error {
	var reader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: 服务商返回 %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("服务商请求被拒绝: status=%d, body=%s", resp.StatusCode, body)
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return fmt.Errorf("%w: 响应解析失败: %v", ErrProviderUnavailable, err)
		}
	}
	return nil
}

func (c *PSPClient) CreateAccount(ctx context.Context, userID string, profile *Profile) (*AccountResult, error) {
	req := map[string]interface{}{
		"userId":  userID,
		"profile": profile,
	}
	var resp struct {
		AccountID string `json:"accountId"`
		Status    string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/accounts", req, &resp); err != nil {
		return nil, err
	}
	return &AccountResult{AccountID: resp.AccountID, Status: resp.Status}, nil
}

func (c *PSPClient) InitiateDeposit(ctx context.Context, accountID string, amount decimal.Decimal, currency string, metadata map[string]string) (*PaymentIntent, error) {
	req := map[string]interface{}{
		"accountId": accountID,
		"amount":    amount,
		"currency":  currency,
		"metadata":  metadata,
	}
	var resp struct {
		TransactionID string `json:"transactionId"`
		Status        string `json:"status"`
		RedirectURL   string `json:"redirectUrl"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/deposits", req, &resp); err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(resp)
	return &PaymentIntent{
		TransactionID: resp.TransactionID,
		Status:        resp.Status,
		RedirectURL:   resp.RedirectURL,
		Raw:           string(raw),
	}, nil
}

func (c *PSPClient) InitiateWithdrawal(ctx context.Context, accountID string, amount decimal.Decimal, currency, destination string, metadata map[string]string) (*PaymentIntent, error) {
	req := map[string]interface{}{
		"accountId":   accountID,
		"amount":      amount,
		"currency":    currency,
		"destination": destination,
		"metadata":    metadata,
	}
	var resp struct {
		TransactionID string `json:"transactionId"`
		Status        string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/withdrawals", req, &resp); err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(resp)
	return &PaymentIntent{
		TransactionID: resp.TransactionID,
		Status:        resp.Status,
		Raw:           string(raw),
	}, nil
}

func (c *PSPClient) PollStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	var resp struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/transactions/"+transactionID, nil, &resp); err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(resp)
	return &StatusResult{Status: resp.Status, Reason: resp.Reason, Raw: string(raw)}, nil
}

func (c *PSPClient) VerifyWebhookSignature(signature string, payload []byte) bool {
	return VerifySignature(c.webhookSecret, signature, payload)
}
