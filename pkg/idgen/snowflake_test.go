package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsUniqueAndIncreasing(t *testing.T) {
	s, err := NewSnowflake(3)
	require.NoError(t, err)

	prev := int64(0)
	for i := 0; i < 10000; i++ {
		id := s.Generate()
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestGenerateConcurrent(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]struct{})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				no := GenerateEntryNo()
				mu.Lock()
				seen[no] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 4000)
}

func TestPrefixes(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateTopupNo(), "TOP"))
	assert.True(t, strings.HasPrefix(GeneratePaymentNo(), "PAY"))
	assert.True(t, strings.HasPrefix(GenerateRefundNo(), "REF"))
	assert.True(t, strings.HasPrefix(GenerateJobNo(), "JOB"))
}

func TestInitRejectsOutOfRangeWorker(t *testing.T) {
	assert.Error(t, Init(-1))
	assert.Error(t, Init(maxWorkerID+1))
	assert.NoError(t, Init(1))
}
