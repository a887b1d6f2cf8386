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
)

// KYCClient 身份核验机构 HTTP 客户端
// 对接核验机构 REST API：/v1/kyc/initiate、/v1/kyc/status/{reference}
type KYCClient struct {
	apiURL        string
	apiKey        string
	webhookSecret string
	httpClient    *http.Client
}

// NewKYCGateway 根据配置选择真实客户端或模拟器
func NewKYCGateway(cfg *config.ProviderConfig) KYCGateway {
	if cfg.Simulated || cfg.APIKey == "" {
		log.Println("[KYC] 未配置核验机构凭证，使用模拟器")
		return NewKYCSimulator(cfg.WebhookSecret)
	}
	return &KYCClient{
		apiURL:        cfg.APIURL,
		apiKey:        cfg.APIKey,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *KYCClient) doJSON(ctx context.Context, method, path string, reqBody, respBody interface{}) error {
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
		return fmt.Errorf("%w: 核验机构返回 %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("核验请求被拒绝: status=%d, body=%s", resp.StatusCode, body)
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return fmt.Errorf("%w: 响应解析失败: %v", ErrProviderUnavailable, err)
		}
	}
	return nil
}

func (c *KYCClient) Initiate(ctx context.Context, userID string, profile *Profile) (*KYCResult, error) {
	req := map[string]interface{}{
		"userId":  userID,
		"profile": profile,
	}
	var resp struct {
		Reference   string `json:"reference"`
		Status      string `json:"status"`
		RedirectURL string `json:"redirectUrl"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/kyc/initiate", req, &resp); err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(resp)
	return &KYCResult{
		Reference:   resp.Reference,
		Status:      resp.Status,
		RedirectURL: resp.RedirectURL,
		Raw:         string(raw),
	}, nil
}

func (c *KYCClient) PollStatus(ctx context.Context, reference string) (*StatusResult, error) {
	var resp struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/kyc/status/"+reference, nil, &resp); err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(resp)
	return &StatusResult{Status: resp.Status, Reason: resp.Reason, Raw: string(raw)}, nil
}

func (c *KYCClient) VerifyWebhookSignature(signature string, payload []byte) bool {
	return VerifySignature(c.webhookSecret, signature, payload)
}
