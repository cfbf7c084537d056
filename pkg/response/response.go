package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"printledger/internal/errs"
)

const (
	CodeSuccess     = 0
	CodeParamError  = 400
	CodeNotFound    = 404
	CodeServerError = 500
)

// 业务错误码
const (
	CodeStatusInvalid      = 1002 // 单据/任务状态不允许该操作
	CodeBalanceNotEnough   = 1003
	CodeDuplicateRequest   = 1004 // 重复发放补贴、重复退款等
	CodeInvariantViolation = 1008 // 账本不一致，需要人工介入
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

// CodeOf 错误分类 -> 响应码
func CodeOf(err error) int {
	switch {
	case errs.IsValidation(err):
		return CodeParamError
	case errs.IsInsufficientFunds(err):
		return CodeBalanceNotEnough
	case errs.IsDuplicate(err):
		return CodeDuplicateRequest
	case errs.IsInvariantViolation(err):
		return CodeInvariantViolation
	case errors.Is(err, errs.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, errs.ErrInvalidTransition):
		return CodeStatusInvalid
	default:
		return CodeServerError
	}
}

// FromError 按错误分类写响应，未知错误不向调用方暴露细节
func FromError(c *gin.Context, err error) {
	code := CodeOf(err)
	if code == CodeServerError {
		_ = c.Error(err)
		ServerError(c, "服务器内部错误")
		return
	}
	Error(c, code, err.Error())
}
