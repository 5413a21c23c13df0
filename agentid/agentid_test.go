package agentid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelfIsStableAndNonZero(t *testing.T) {
	first := Self()
	second := Self()

	assert.Equal(t, first, second)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", first.String())
}
