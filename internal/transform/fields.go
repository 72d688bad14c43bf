package transform

import "github.com/greenhouse-labs/catalog-bff/internal/catalog"

// Upstream record field names
const (
	fieldID             = "CodigoArticulo"
	fieldAltEAN         = "CodigoAlternativo2"
	fieldScientificName = "DescripcionArticulo"
	fieldFamily         = "Descripcion"
	fieldCommonName     = "Descripcion2Articulo"
	fieldBasePrice      = "Precio1"
	fieldPrice2         = "PrecioVentasinIVA2"
	fieldPrice3         = "PrecioVentasinIVA3"
	fieldPotSize        = "_Maceta"
	fieldCaliber        = "_Calibre"
	fieldHeight         = "_Altura"
	fieldPresentation   = "_Presentacion"
	fieldFinish         = "_Acabado"
	fieldSizeClass      = "_Tamano"
	fieldUnitsPerCart   = "_UndsCarro"
	fieldUnitsPerPallet = "_UndsTabla"
	fieldUnitsPerBox    = "_UndsCaja"
)

// promotionFields maps each channel to its upstream flag field
var promotionFields = map[catalog.PromotionChannel]string{
	catalog.ChannelNuevoEspacio: "_OfertaNuevoEspacio",
	catalog.ChannelEuroPlanta:   "_OfertaEuroPlanta",
	catalog.ChannelCortijo:      "_OfertaCortijo",
	catalog.ChannelFinca:        "_OfertaFinca",
	catalog.ChannelArroyo:       "_OfertaArroyo",
	catalog.ChannelGamera:       "_OfertaGamera",
	catalog.ChannelGarden:       "_OfertaGarden",
	catalog.ChannelMarbella:     "_OfertaMarbella",
	catalog.ChannelEstacion:     "_OfertaEstacion",
}

// PromotionFieldNames returns the upstream flag field of every channel,
// in catalog.PromotionChannels order
func PromotionFieldNames() []string {
	names := make([]string, 0, len(catalog.PromotionChannels))
	for _, c := range catalog.PromotionChannels {
		names = append(names, promotionFields[c])
	}
	return names
}
