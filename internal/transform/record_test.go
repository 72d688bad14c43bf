package transform_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/greenhouse-labs/catalog-bff/internal/catalog"
	"github.com/greenhouse-labs/catalog-bff/internal/transform"
	"github.com/greenhouse-labs/catalog-bff/internal/transform/mocks"
)

const fullRecord = `{
	"CodigoArticulo": " 120455 ",
	"CodigoAlternativo2": "8437000120455",
	"DescripcionArticulo": "FICUS BENJAMINA danielle",
	"Descripcion": "moraceae",
	"Descripcion2Articulo": "Ficus llorón",
	"Precio1": 12.5,
	"PrecioVentasinIVA2": 10.25,
	"PrecioVentasinIVA3": 9,
	"_Maceta": "17",
	"_Calibre": "",
	"_Altura": "80",
	"_Presentacion": "Tutor",
	"_Acabado": "Trenzado",
	"_Tamano": "M",
	"_UndsCarro": 48,
	"_UndsTabla": 8,
	"_UndsCaja": 1,
	"_OfertaCortijo": {"value": -1},
	"_OfertaFinca": {"value": 0},
	"_OfertaGarden": {"value": -1, "label": "garden"},
	"CodigoEmpresa": 1,
	"SomethingNew": [1, 2, 3]
}`

func TestParse_FullRecord(t *testing.T) {
	t.Parallel()

	item, violations, err := transform.Parse([]byte(fullRecord))
	require.NoError(t, err)
	require.Empty(t, violations)

	want := catalog.CatalogItem{
		ID:             "120455",
		AltEAN:         "8437000120455",
		ScientificName: "Ficus Benjamina Danielle",
		Family:         "Moraceae",
		CommonName:     "Ficus llorón",
		BasePrice:      12.5,
		Price2:         10.25,
		Price3:         9,
		PotSize:        "17",
		Height:         "80",
		Presentation:   "Tutor",
		Finish:         "Trenzado",
		SizeClass:      "M",
		UnitsPerCart:   48,
		UnitsPerPallet: 8,
		UnitsPerBox:    1,
		PromotionFlags: catalog.PromotionFlags{Cortijo: true, Garden: true},
	}
	assert.Equal(t, want, item)
}

func TestParse_OptionalFieldsDefault(t *testing.T) {
	t.Parallel()

	item, violations, err := transform.Parse([]byte(`{"CodigoArticulo":"7","Precio1":null,"_Maceta":null}`))
	require.NoError(t, err)
	require.Empty(t, violations)
	assert.Equal(t, catalog.CatalogItem{ID: "7"}, item)
}

func TestParse_Violations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		record string
		fields []string
	}{
		{name: "missing id", record: `{"DescripcionArticulo":"x"}`, fields: []string{"CodigoArticulo"}},
		{name: "blank id", record: `{"CodigoArticulo":"   "}`, fields: []string{"CodigoArticulo"}},
		{name: "null id", record: `{"CodigoArticulo":null}`, fields: []string{"CodigoArticulo"}},
		{name: "numeric id", record: `{"CodigoArticulo":120455}`, fields: []string{"CodigoArticulo"}},
		{name: "string price", record: `{"CodigoArticulo":"1","Precio1":"12.5"}`, fields: []string{"Precio1"}},
		{name: "negative price", record: `{"CodigoArticulo":"1","PrecioVentasinIVA3":-1}`, fields: []string{"PrecioVentasinIVA3"}},
		{name: "fractional units", record: `{"CodigoArticulo":"1","_UndsCaja":2.5}`, fields: []string{"_UndsCaja"}},
		{name: "negative units", record: `{"CodigoArticulo":"1","_UndsCarro":-4}`, fields: []string{"_UndsCarro"}},
		{name: "numeric text field", record: `{"CodigoArticulo":"1","_Maceta":17}`, fields: []string{"_Maceta"}},
		{name: "flag not an object", record: `{"CodigoArticulo":"1","_OfertaFinca":-1}`, fields: []string{"_OfertaFinca"}},
		{name: "flag value not a number", record: `{"CodigoArticulo":"1","_OfertaFinca":{"value":"-1"}}`, fields: []string{"_OfertaFinca.value"}},
		{
			name:   "several violations are all reported",
			record: `{"CodigoArticulo":"","Precio1":"x","_UndsTabla":-1}`,
			fields: []string{"CodigoArticulo", "Precio1", "_UndsTabla"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, violations, err := transform.Parse([]byte(tt.record))
			require.NoError(t, err)

			got := make([]string, len(violations))
			for i, v := range violations {
				got[i] = v.Field
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{``, `{`, `"CodigoArticulo"`, `[1,2]`, `42`, `null`} {
		_, _, err := transform.Parse([]byte(raw))
		assert.ErrorIs(t, err, transform.ErrMalformedRecord, "input %q", raw)
	}
}

func TestParse_PromotionFlags(t *testing.T) {
	t.Parallel()

	record := map[string]any{"CodigoArticulo": "1"}
	for _, field := range transform.PromotionFieldNames() {
		record[field] = map[string]any{"value": -1}
	}
	raw, err := json.Marshal(record)
	require.NoError(t, err)

	item, violations, err := transform.Parse(raw)
	require.NoError(t, err)
	require.Empty(t, violations)
	for _, c := range catalog.PromotionChannels {
		assert.True(t, item.PromotionFlags.Get(c), "channel %s", c)
	}

	// Any value other than -1 is inactive.
	item, _, err = transform.Parse([]byte(`{"CodigoArticulo":"1","_OfertaMarbella":{"value":1},"_OfertaEstacion":{"value":-1.5}}`))
	require.NoError(t, err)
	assert.Equal(t, catalog.PromotionFlags{}, item.PromotionFlags)
}

func TestPromotionFieldNames(t *testing.T) {
	t.Parallel()

	names := transform.PromotionFieldNames()
	require.Len(t, names, len(catalog.PromotionChannels))
	assert.Equal(t, "_OfertaNuevoEspacio", names[0])
	assert.Equal(t, "_OfertaEstacion", names[len(names)-1])
}

func TestTransformer_Transform(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	images := mocks.NewMockImageResolver(ctrl)
	images.EXPECT().Resolve(gomock.Any(), "120455").Return("https://img.example.com/low/120455-0.jpg")

	tr := transform.NewTransformer(images)

	item, err := tr.Transform(context.Background(), json.RawMessage(fullRecord))
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/low/120455-0.jpg", item.ImageURL)
}

func TestTransformer_RejectsInvalidRecord(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	images := mocks.NewMockImageResolver(ctrl)
	images.EXPECT().Resolve(gomock.Any(), gomock.Any()).Times(0)

	tr := transform.NewTransformer(images)

	_, err := tr.Transform(context.Background(), json.RawMessage(`{"CodigoArticulo":"9","Precio1":-3}`))
	var validationErr *transform.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "9", validationErr.ID)
	require.Len(t, validationErr.Violations, 1)
	assert.Equal(t, `invalid record "9": Precio1 must not be negative`, err.Error())

	_, err = tr.Transform(context.Background(), json.RawMessage(`{}`))
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "invalid record: CodigoArticulo is required", err.Error())
}

func TestTransformer_NilResolver(t *testing.T) {
	t.Parallel()

	item, err := transform.NewTransformer(nil).Transform(context.Background(), json.RawMessage(`{"CodigoArticulo":"1"}`))
	require.NoError(t, err)
	assert.Empty(t, item.ImageURL)
}
