package randline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineLength(t *testing.T) {
	assert.Len(t, Line(5), 5)
	assert.Len(t, Line(7), 7)
	assert.Equal(t, "", Line(0))
}

func TestLineIndependentSamples(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		seen[Line(8)] = true
	}
	// Collisions across 50 independent 8-char alphanumeric samples are
	// astronomically unlikely; a near-total collision would indicate a
	// shared/broken entropy source rather than bad luck.
	assert.Greater(t, len(seen), 45)
}
