package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassificationThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("完成支付失败: %w", &InsufficientFundsError{AccountID: 1, Balance: 10, Required: 20})
	assert.True(t, IsInsufficientFunds(wrapped))
	assert.False(t, IsValidation(wrapped))

	dup := fmt.Errorf("发放补贴: %w", &DuplicateOperationError{Operation: "subsidy_grant", Key: "1/2025-HK1"})
	assert.True(t, IsDuplicate(dup))

	assert.True(t, IsValidation(Validation("copies", "必须大于0, got %d", 0)))
	assert.True(t, IsInvariantViolation(&InvariantViolationError{Detail: "x"}))
	assert.True(t, errors.Is(fmt.Errorf("payment 9: %w", ErrNotFound), ErrNotFound))
}

func TestValidationMessage(t *testing.T) {
	err := Validation("pages", "必须大于0, got %d", -1)
	assert.Equal(t, "参数 pages 不合法: 必须大于0, got -1", err.Error())
}
