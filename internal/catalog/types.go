// Package catalog defines the catalog entities mirrored from the upstream system.
package catalog

// PromotionChannel names one promotion channel an item can be offered through
type PromotionChannel string

const (
	// ChannelNuevoEspacio is the "Nuevo Espacio" promotion channel
	ChannelNuevoEspacio PromotionChannel = "nuevoEspacio"
	// ChannelEuroPlanta is the "EuroPlanta" promotion channel
	ChannelEuroPlanta PromotionChannel = "euroPlanta"
	// ChannelCortijo is the "Cortijo" promotion channel
	ChannelCortijo PromotionChannel = "cortijo"
	// ChannelFinca is the "Finca" promotion channel
	ChannelFinca PromotionChannel = "finca"
	// ChannelArroyo is the "Arroyo" promotion channel
	ChannelArroyo PromotionChannel = "arroyo"
	// ChannelGamera is the "Gamera" promotion channel
	ChannelGamera PromotionChannel = "gamera"
	// ChannelGarden is the "Garden" promotion channel
	ChannelGarden PromotionChannel = "garden"
	// ChannelMarbella is the "Marbella" promotion channel
	ChannelMarbella PromotionChannel = "marbella"
	// ChannelEstacion is the "Estacion" promotion channel
	ChannelEstacion PromotionChannel = "estacion"
)

// PromotionChannels lists every known channel in a stable order
var PromotionChannels = []PromotionChannel{
	ChannelNuevoEspacio,
	ChannelEuroPlanta,
	ChannelCortijo,
	ChannelFinca,
	ChannelArroyo,
	ChannelGamera,
	ChannelGarden,
	ChannelMarbella,
	ChannelEstacion,
}

// IsValid reports whether c is one of the known channels
func (c PromotionChannel) IsValid() bool {
	for _, known := range PromotionChannels {
		if c == known {
			return true
		}
	}
	return false
}

// PromotionFlags holds one boolean per promotion channel
type PromotionFlags struct {
	NuevoEspacio bool `json:"nuevoEspacio"`
	EuroPlanta   bool `json:"euroPlanta"`
	Cortijo      bool `json:"cortijo"`
	Finca        bool `json:"finca"`
	Arroyo       bool `json:"arroyo"`
	Gamera       bool `json:"gamera"`
	Garden       bool `json:"garden"`
	Marbella     bool `json:"marbella"`
	Estacion     bool `json:"estacion"`
}

// field returns a pointer to the flag backing channel c, or nil for unknown channels
func (f *PromotionFlags) field(c PromotionChannel) *bool {
	switch c {
	case ChannelNuevoEspacio:
		return &f.NuevoEspacio
	case ChannelEuroPlanta:
		return &f.EuroPlanta
	case ChannelCortijo:
		return &f.Cortijo
	case ChannelFinca:
		return &f.Finca
	case ChannelArroyo:
		return &f.Arroyo
	case ChannelGamera:
		return &f.Gamera
	case ChannelGarden:
		return &f.Garden
	case ChannelMarbella:
		return &f.Marbella
	case ChannelEstacion:
		return &f.Estacion
	}
	return nil
}

// Get returns the flag for channel c. Unknown channels are always false.
func (f PromotionFlags) Get(c PromotionChannel) bool {
	if p := f.field(c); p != nil {
		return *p
	}
	return false
}

// Set sets the flag for channel c. Unknown channels are ignored.
func (f *PromotionFlags) Set(c PromotionChannel, active bool) {
	if p := f.field(c); p != nil {
		*p = active
	}
}

// CatalogItem is the clean internal representation of one upstream catalog record
type CatalogItem struct {
	ID             string `json:"id"`
	AltEAN         string `json:"altEan"`
	ScientificName string `json:"scientificName"`
	Family         string `json:"family"`
	CommonName     string `json:"commonName"`

	BasePrice float64 `json:"basePrice"`
	Price2    float64 `json:"price2"`
	Price3    float64 `json:"price3"`

	PotSize      string `json:"potSize"`
	Caliber      string `json:"caliber"`
	Height       string `json:"height"`
	Presentation string `json:"presentation"`
	Finish       string `json:"finish"`
	SizeClass    string `json:"sizeClass"`

	UnitsPerCart   int `json:"unitsPerCart"`
	UnitsPerPallet int `json:"unitsPerPallet"`
	UnitsPerBox    int `json:"unitsPerBox"`

	ImageURL string `json:"imageUrl"`

	PromotionFlags PromotionFlags `json:"promotionFlags"`
}

// Filter narrows a catalog lookup. Zero values are ignored.
type Filter struct {
	// Search is a case-insensitive substring matched against id, alternate EAN,
	// scientific name, common name and family
	Search string

	PotSize string
	Height  string
	Caliber string

	// Promotion restricts results to items active in the given channel
	Promotion PromotionChannel
}

// Page is one page of a filtered catalog lookup
type Page struct {
	Items []CatalogItem
	Total int
}
