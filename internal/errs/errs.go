// Package errs 定义账本/计价引擎的错误分类
//
// 【传播策略】
//   - ValidationError / DuplicateOperationError：可恢复，直接返回调用方，不产生任何部分状态
//   - InsufficientFundsError / InvariantViolationError：中止整个事务并上报，绝不自动重试
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("记录不存在")
	ErrInvalidTransition = errors.New("状态流转不合法")
)

// ValidationError 入参不合法或越界
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("参数 %s 不合法: %s", e.Field, e.Reason)
}

// Validation 构造 ValidationError
func Validation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InsufficientFundsError 扣款金额超过当前余额
type InsufficientFundsError struct {
	AccountID int64
	Balance   int64
	Required  int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("余额不足: account=%d, balance=%d, required=%d", e.AccountID, e.Balance, e.Required)
}

// DuplicateOperationError 重复的一次性操作（同学期重复发放补贴、同任务重复退款等）
type DuplicateOperationError struct {
	Operation string
	Key       string
}

func (e *DuplicateOperationError) Error() string {
	return fmt.Sprintf("重复操作: %s (%s)", e.Operation, e.Key)
}

// InvariantViolationError 账本与业务单据不一致，属于致命错误，只上报不修复
type InvariantViolationError struct {
	Detail string
}

func (e *InvariantViolationError) Error() string {
	return "账本不变量被破坏: " + e.Detail
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsInsufficientFunds(err error) bool {
	var target *InsufficientFundsError
	return errors.As(err, &target)
}

func IsDuplicate(err error) bool {
	var target *DuplicateOperationError
	return errors.As(err, &target)
}

func IsInvariantViolation(err error) bool {
	var target *InvariantViolationError
	return errors.As(err, &target)
}
