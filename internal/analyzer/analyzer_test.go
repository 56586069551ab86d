package analyzer

import (
	"testing"

	"github.com/bcfsec/paramhunt/internal/headerlist"
	"github.com/bcfsec/paramhunt/internal/response"
	"github.com/stretchr/testify/assert"
)

func recordWith(reflected map[string]int) *response.Record {
	r := response.New(200, headerlist.New(), "", 0, "sentinel123", response.RequestSnapshot{Headers: headerlist.New()})
	r.ReflectedParameters = reflected
	return r
}

func TestAnalyzeNoneReflected(t *testing.T) {
	v := Analyze(recordWith(map[string]int{}), "sentinel123", 5)
	assert.False(t, v.Found)
	assert.False(t, v.Recheck)
}

func TestAnalyzeSingleReflected(t *testing.T) {
	v := Analyze(recordWith(map[string]int{"admin": 3}), "sentinel123", 5)
	assert.True(t, v.Found)
	assert.Equal(t, "admin", v.Name)
	assert.False(t, v.Recheck)
}

func TestAnalyzeBatchOfTwoWithSentinelBothReflected(t *testing.T) {
	v := Analyze(recordWith(map[string]int{"admin": 3, "sentinel123": 3}), "sentinel123", 2)
	assert.True(t, v.Found)
	assert.Equal(t, "admin", v.Name)
	assert.False(t, v.Recheck)
}

func TestAnalyzeTwoGroupsWithSingletonRechecksTheRest(t *testing.T) {
	v := Analyze(recordWith(map[string]int{
		"a": 1, "b": 1, "c": 1, "d": 5,
	}), "sentinel123", 20)
	assert.True(t, v.Found)
	assert.Equal(t, "d", v.Name)
	assert.True(t, v.Recheck)
}

func TestAnalyzeUnstableReflectionRechecksWithNoVerdict(t *testing.T) {
	v := Analyze(recordWith(map[string]int{
		"a": 1, "b": 2, "c": 3,
	}), "sentinel123", 20)
	assert.False(t, v.Found)
	assert.True(t, v.Recheck)
}

func TestAnalyzeManyReflectedSameDeltaIsUnstable(t *testing.T) {
	v := Analyze(recordWith(map[string]int{
		"a": 2, "b": 2, "c": 2,
	}), "sentinel123", 20)
	assert.False(t, v.Found)
	assert.True(t, v.Recheck)
}
