package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenhouse-labs/catalog-bff/internal/catalog"
)

const stagingTable = "catalog_items_staging"

var itemColumns = []string{
	"id", "alt_ean", "scientific_name", "family", "common_name",
	"base_price", "price2", "price3",
	"pot_size", "caliber", "height", "presentation", "finish", "size_class",
	"units_per_cart", "units_per_pallet", "units_per_box",
	"image_url",
	"promo_nuevo_espacio", "promo_euro_planta", "promo_cortijo", "promo_finca", "promo_arroyo",
	"promo_gamera", "promo_garden", "promo_marbella", "promo_estacion",
}

var promotionColumns = map[catalog.PromotionChannel]string{
	catalog.ChannelNuevoEspacio: "promo_nuevo_espacio",
	catalog.ChannelEuroPlanta:   "promo_euro_planta",
	catalog.ChannelCortijo:      "promo_cortijo",
	catalog.ChannelFinca:        "promo_finca",
	catalog.ChannelArroyo:       "promo_arroyo",
	catalog.ChannelGamera:       "promo_gamera",
	catalog.ChannelGarden:       "promo_garden",
	catalog.ChannelMarbella:     "promo_marbella",
	catalog.ChannelEstacion:     "promo_estacion",
}

const searchExpr = "(id || ' ' || alt_ean || ' ' || scientific_name || ' ' || common_name || ' ' || family)"

// PostgresStore keeps the catalog in the catalog_items table
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore on top of pool.
// The caller is responsible for closing the pool when done.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}
	return &PostgresStore{pool: pool}, nil
}

// ReplaceAll implements Store.
//
// Items are bulk copied into a temp table, then the live table is emptied and
// refilled from it inside one serializable transaction. Readers keep seeing
// the previous rows until commit. The temp table is dropped at commit.
func (s *PostgresStore) ReplaceAll(ctx context.Context, items []catalog.CatalogItem) (int, error) {
	kept, rejected := prepare(items)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			slog.Error("Failed to roll back catalog replace", "error", rollbackErr)
		}
	}()

	_, err = tx.Exec(ctx, fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE catalog_items INCLUDING DEFAULTS) ON COMMIT DROP", stagingTable))
	if err != nil {
		return 0, fmt.Errorf("failed to create staging table: %w", err)
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{stagingTable}, itemColumns, pgx.CopyFromSlice(len(kept), func(i int) ([]any, error) {
		return itemRow(kept[i]), nil
	}))
	if err != nil {
		return 0, fmt.Errorf("failed to copy catalog items: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM catalog_items"); err != nil {
		return 0, fmt.Errorf("failed to clear catalog items: %w", err)
	}

	cols := strings.Join(itemColumns, ", ")
	tag, err := tx.Exec(ctx, fmt.Sprintf(
		"INSERT INTO catalog_items (%s) SELECT %s FROM %s ON CONFLICT (id) DO NOTHING", cols, cols, stagingTable))
	if err != nil {
		return 0, fmt.Errorf("failed to insert catalog items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit catalog replace: %w", err)
	}

	stored := int(tag.RowsAffected())
	slog.Debug("Catalog replaced", "copied", copied, "stored", stored, "rejected", len(rejected))
	return stored, partialError(rejected)
}

// Find implements Store
func (s *PostgresStore) Find(ctx context.Context, filter catalog.Filter, page, pageSize int) (*catalog.Page, error) {
	page, pageSize = normalizePage(page, pageSize)
	where, args := filterClause(filter)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM catalog_items"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count catalog items: %w", err)
	}

	result := &catalog.Page{Items: []catalog.CatalogItem{}, Total: total}
	offset := (page - 1) * pageSize
	if offset >= total {
		return result, nil
	}

	query := fmt.Sprintf("SELECT %s FROM catalog_items%s ORDER BY scientific_name, id LIMIT $%d OFFSET $%d",
		strings.Join(itemColumns, ", "), where, len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, pageSize, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog items: %w", err)
	}

	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("failed to scan catalog items: %w", err)
	}
	result.Items = items
	return result, nil
}

// Get implements Store
func (s *PostgresStore) Get(ctx context.Context, id string) (*catalog.CatalogItem, error) {
	query := fmt.Sprintf("SELECT %s FROM catalog_items WHERE id = $1", strings.Join(itemColumns, ", "))
	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog item: %w", err)
	}

	item, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan catalog item: %w", err)
	}
	return &item, nil
}

// Count implements Store
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM catalog_items").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count catalog items: %w", err)
	}
	return n, nil
}

// Ping implements Store
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func filterClause(f catalog.Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if search := strings.TrimSpace(f.Search); search != "" {
		add(searchExpr+" ILIKE '%%' || $%d || '%%'", escapeLike(search))
	}
	if f.PotSize != "" {
		add("pot_size = $%d", f.PotSize)
	}
	if f.Height != "" {
		add("height = $%d", f.Height)
	}
	if f.Caliber != "" {
		add("caliber = $%d", f.Caliber)
	}
	if f.Promotion != "" {
		col, ok := promotionColumns[f.Promotion]
		if !ok {
			// unknown channels match nothing
			conds = append(conds, "FALSE")
		} else {
			conds = append(conds, col)
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func itemRow(it catalog.CatalogItem) []any {
	p := it.PromotionFlags
	return []any{
		it.ID, it.AltEAN, it.ScientificName, it.Family, it.CommonName,
		it.BasePrice, it.Price2, it.Price3,
		it.PotSize, it.Caliber, it.Height, it.Presentation, it.Finish, it.SizeClass,
		int32(it.UnitsPerCart), int32(it.UnitsPerPallet), int32(it.UnitsPerBox), //nolint:gosec // bounded at parse time
		it.ImageURL,
		p.NuevoEspacio, p.EuroPlanta, p.Cortijo, p.Finca, p.Arroyo,
		p.Gamera, p.Garden, p.Marbella, p.Estacion,
	}
}

func scanItem(row pgx.CollectableRow) (catalog.CatalogItem, error) {
	var it catalog.CatalogItem
	var cart, pallet, box int32
	p := &it.PromotionFlags
	err := row.Scan(
		&it.ID, &it.AltEAN, &it.ScientificName, &it.Family, &it.CommonName,
		&it.BasePrice, &it.Price2, &it.Price3,
		&it.PotSize, &it.Caliber, &it.Height, &it.Presentation, &it.Finish, &it.SizeClass,
		&cart, &pallet, &box,
		&it.ImageURL,
		&p.NuevoEspacio, &p.EuroPlanta, &p.Cortijo, &p.Finca, &p.Arroyo,
		&p.Gamera, &p.Garden, &p.Marbella, &p.Estacion,
	)
	it.UnitsPerCart, it.UnitsPerPallet, it.UnitsPerBox = int(cart), int(pallet), int(box)
	return it, err
}
