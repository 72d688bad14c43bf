package upstream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenhouse-labs/catalog-bff/internal/upstream"
)

func TestBuildFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		company int
		fields  []string
		want    string
		wantErr error
	}{
		{
			name:    "single field",
			company: 1,
			fields:  []string{"_OfertaCortijo"},
			want:    "CodigoEmpresa=1 and (_OfertaCortijo=-1)",
		},
		{
			name:    "several fields keep order",
			company: 3,
			fields:  []string{"_OfertaFinca", "_OfertaArroyo", "_OfertaGarden"},
			want:    "CodigoEmpresa=3 and (_OfertaFinca=-1 or _OfertaArroyo=-1 or _OfertaGarden=-1)",
		},
		{
			name:    "blank fields are skipped",
			company: 1,
			fields:  []string{" ", "_OfertaGamera", ""},
			want:    "CodigoEmpresa=1 and (_OfertaGamera=-1)",
		},
		{name: "nil fields", company: 1, wantErr: upstream.ErrEmptyFilter},
		{name: "only blanks", company: 1, fields: []string{"", "  "}, wantErr: upstream.ErrEmptyFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := upstream.BuildFilter(tt.company, tt.fields)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
