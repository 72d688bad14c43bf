package transform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/greenhouse-labs/catalog-bff/internal/transform"
)

func TestTitleCase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "ficus", want: "Ficus"},
		{in: "FICUS BENJAMINA", want: "Ficus Benjamina"},
		{in: "ficus  benjamina\tdanielle", want: "Ficus  Benjamina\tDanielle"},
		{in: " leading space", want: " Leading Space"},
		{in: "semi-erect form", want: "Semi-erect Form"},
		{in: "ÁRBOL ñandú", want: "Árbol Ñandú"},
		{in: "17cm pot", want: "17cm Pot"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, transform.TitleCase(tt.in))
		})
	}
}
