package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCategory(t *testing.T) {
	tp := NewTextProcessor(nil)

	assert.Equal(t, tp.NormalizeCategory("Male"), tp.NormalizeCategory("  MALE "))
	assert.Equal(t, tp.NormalizeCategory("female"), tp.NormalizeCategory("Female"))
	assert.NotEqual(t, tp.NormalizeCategory("Male"), tp.NormalizeCategory("Female"))
	assert.Equal(t, "", tp.NormalizeCategory("   "))
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(nil)

	assert.Equal(t, "Male", tp.SanitizeUTF8("Male"))
	assert.Equal(t, "Male", tp.SanitizeUTF8("Ma\xffle"))
}
