package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printledger/internal/errs"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errs.Validation("pages", "must be positive"), CodeParamError},
		{&errs.InsufficientFundsError{AccountID: 1, Balance: 5, Required: 10}, CodeBalanceNotEnough},
		{fmt.Errorf("wrap: %w", &errs.DuplicateOperationError{Operation: "refund_job"}), CodeDuplicateRequest},
		{&errs.InvariantViolationError{Detail: "orphan"}, CodeInvariantViolation},
		{fmt.Errorf("job 1: %w", errs.ErrNotFound), CodeNotFound},
		{fmt.Errorf("job 1: %w", errs.ErrInvalidTransition), CodeStatusInvalid},
		{errors.New("db down"), CodeServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CodeOf(tt.err), tt.err.Error())
	}
}

func TestFromErrorHidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	FromError(c, errors.New("dial tcp 10.0.0.1:3306: connection refused"))

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, CodeServerError, resp.Code)
	assert.NotContains(t, resp.Message, "10.0.0.1")
	assert.Len(t, c.Errors, 1)
}
