package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j****@example.com", MaskEmail("jane.doe@example.com"))
	assert.Equal(t, "****body", MaskEmail("nobody"))
	assert.Equal(t, "", MaskEmail("  "))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****5678", MaskSecret("+6212345678"))
	assert.Equal(t, "****", MaskSecret("123"))
}
