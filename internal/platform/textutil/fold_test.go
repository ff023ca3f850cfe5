package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	cases := map[string]string{
		"  José   Pérez ": "jose perez",
		"ÑANDÚ":           "nandu",
		"Cien años":       "cien anos",
		"":                "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Fold(in), "input %q", in)
	}
}

func TestSearchKey(t *testing.T) {
	assert.Equal(t, "el principito antoine de saint-exupery", SearchKey("El Principito", "Antoine de Saint-Exupéry"))
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%garcia%", LikePattern("García"))
	assert.Equal(t, `%50\%%`, LikePattern("50%"))
	assert.Equal(t, `%a\_b%`, LikePattern("a_b"))
}
