package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/greenhouse-labs/catalog-bff/internal/api/common"
	"github.com/greenhouse-labs/catalog-bff/internal/auth"
	"github.com/greenhouse-labs/catalog-bff/internal/catalog"
	"github.com/greenhouse-labs/catalog-bff/internal/store"
)

// Article is a catalog item as returned to API callers. Prices are never
// exposed directly; Price carries the one tier the caller may see.
type Article struct {
	ID             string `json:"id"`
	AltEAN         string `json:"altEan"`
	ScientificName string `json:"scientificName"`
	Family         string `json:"family"`
	CommonName     string `json:"commonName"`

	PotSize      string `json:"potSize"`
	Caliber      string `json:"caliber"`
	Height       string `json:"height"`
	Presentation string `json:"presentation"`
	Finish       string `json:"finish"`
	SizeClass    string `json:"sizeClass"`

	UnitsPerCart   int `json:"unitsPerCart"`
	UnitsPerPallet int `json:"unitsPerPallet"`
	UnitsPerBox    int `json:"unitsPerBox"`

	ImageURL       string                 `json:"imageUrl"`
	PromotionFlags catalog.PromotionFlags `json:"promotionFlags"`

	Price *float64 `json:"price,omitempty"`
}

// ArticlesResponse is one page of articles
type ArticlesResponse struct {
	CurrentPage   int       `json:"currentPage"`
	TotalPages    int       `json:"totalPages"`
	TotalArticles int       `json:"totalArticles"`
	Articles      []Article `json:"articles"`
}

// listArticles handles GET /api/v1/articles
func (rr *Routes) listArticles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page := common.QueryInt(r, "page", 1)
	limit := common.QueryInt(r, "limit", store.DefaultPageSize)
	if limit > store.MaxPageSize {
		limit = store.MaxPageSize
	}

	filter := catalog.Filter{
		Search:  query.Get("search"),
		PotSize: query.Get("potSize"),
		Height:  query.Get("height"),
		Caliber: query.Get("caliber"),
	}
	if promo := query.Get("promotion"); promo != "" {
		channel := catalog.PromotionChannel(promo)
		if !channel.IsValid() {
			common.WriteErrorResponse(w, "unknown promotion channel: "+promo, http.StatusBadRequest)
			return
		}
		filter.Promotion = channel
	}

	result, err := rr.store.Find(r.Context(), filter, page, limit)
	if err != nil {
		slog.Error("Failed to list articles", "error", err, "page", page, "limit", limit)
		common.WriteErrorResponse(w, "failed to list articles", http.StatusInternalServerError)
		return
	}

	claims := auth.ClaimsFromContext(r.Context())
	articles := make([]Article, 0, len(result.Items))
	for i := range result.Items {
		articles = append(articles, toArticle(&result.Items[i], claims))
	}

	common.WriteJSONResponse(w, ArticlesResponse{
		CurrentPage:   page,
		TotalPages:    (result.Total + limit - 1) / limit,
		TotalArticles: result.Total,
		Articles:      articles,
	}, http.StatusOK)
}

// getArticle handles GET /api/v1/articles/{id}
func (rr *Routes) getArticle(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetAndValidateURLParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	item, err := rr.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.WriteErrorResponse(w, "article not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get article", "error", err, "id", id)
		common.WriteErrorResponse(w, "failed to get article", http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, toArticle(item, auth.ClaimsFromContext(r.Context())), http.StatusOK)
}

func toArticle(item *catalog.CatalogItem, claims *auth.Claims) Article {
	a := Article{
		ID:             item.ID,
		AltEAN:         item.AltEAN,
		ScientificName: item.ScientificName,
		Family:         item.Family,
		CommonName:     item.CommonName,
		PotSize:        item.PotSize,
		Caliber:        item.Caliber,
		Height:         item.Height,
		Presentation:   item.Presentation,
		Finish:         item.Finish,
		SizeClass:      item.SizeClass,
		UnitsPerCart:   item.UnitsPerCart,
		UnitsPerPallet: item.UnitsPerPallet,
		UnitsPerBox:    item.UnitsPerBox,
		ImageURL:       item.ImageURL,
		PromotionFlags: item.PromotionFlags,
	}

	tier, ok := claims.Tier()
	if !ok {
		return a
	}
	var price float64
	switch tier {
	case auth.PriceTierBase:
		price = item.BasePrice
	case auth.PriceTier2:
		price = item.Price2
	case auth.PriceTier3:
		price = item.Price3
	}
	a.Price = &price
	return a
}
