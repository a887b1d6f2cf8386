package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayload 用共享密钥对原始报文做 HMAC-SHA256 签名，返回十六进制串
// 服务商回调和模拟器注入都用同一套签法
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature 校验回调签名
// 密钥未配置时一律拒绝；比较使用恒定时间算法
func VerifySignature(secret, signature string, payload []byte) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := SignPayload(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
