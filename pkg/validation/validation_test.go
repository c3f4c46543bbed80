package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	valid := []string{"alice", "bob_99", "Some-User", "abc"}
	for _, name := range valid {
		assert.NoError(t, ValidateUsername(name), name)
	}

	invalid := []string{
		"",
		"ab",
		strings.Repeat("a", 51),
		"no spaces",
		"emoji🙂",
		"semi;colon",
	}
	for _, name := range invalid {
		assert.Error(t, ValidateUsername(name), name)
	}
}

func TestValidateEndpointID(t *testing.T) {
	assert.NoError(t, ValidateEndpointID("d2f1c9aa-8f43-4a2e-9f3a-0c1b2d3e4f5a"))
	assert.NoError(t, ValidateEndpointID("ep_1"))

	assert.Error(t, ValidateEndpointID(""))
	assert.Error(t, ValidateEndpointID(strings.Repeat("x", 101)))
	assert.Error(t, ValidateEndpointID("bad id"))
}
