package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLimitsAreValid(t *testing.T) {
	assert.NoError(t, DefaultLimits().Validate())
}

func TestValidateRejectsNonPositiveChunkSize(t *testing.T) {
	l := DefaultLimits()
	l.ChunkSize = 0
	err := l.Validate()
	assert.ErrorContains(t, err, "ChunkSize must be positive")
}

func TestValidateRejectsOversizedConcurrency(t *testing.T) {
	l := DefaultLimits()
	l.Concurrency = 5000
	err := l.Validate()
	assert.ErrorContains(t, err, "Concurrency too large")
}
