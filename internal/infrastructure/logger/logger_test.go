package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printledger/internal/config"
)

func TestNew(t *testing.T) {
	log, err := New(&config.LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(-1))

	_, err = New(&config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
