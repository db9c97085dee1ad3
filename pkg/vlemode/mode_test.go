package vlemode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistrySecondaryLeavesPrimary(t *testing.T) {
	r := NewRegistry()

	r.Set(1, Primary)
	assert.True(t, r.Is(1))
	assert.True(t, r.PrimaryIs(1))

	r.Set(2, Secondary)
	assert.True(t, r.Is(2))
	assert.True(t, r.PrimaryIs(1), "secondary mode must not change the primary mode")
	assert.Equal(t, Mode(1), r.GetPrimary())

	r.Set(3, Primary)
	assert.True(t, r.Is(3))
	assert.True(t, r.PrimaryIs(3))
}
