package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

// 业务错误码：校验失败/余额不足/非法状态流转/重复发起/服务商不可用/签名非法/并发冲突
const (
	CodeValidationError        = 1001
	CodeInsufficientBalance    = 1002
	CodeInvalidStateTransition = 1003
	CodeAlreadyInProgress      = 1004
	CodeProviderUnavailable    = 1005
	CodeSignatureInvalid       = 1006
	CodeConflict               = 1007
	CodeWalletNotFound         = 1008
	CodeTransactionNotFound    = 1009
	CodeProductNotFound        = 1010
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
