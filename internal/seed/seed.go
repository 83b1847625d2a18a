package seed

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"digitalstore/internal/domain"
	productrepo "digitalstore/internal/repository/product"
)

type variationSeed struct {
	SKU    string
	Title  string
	Amount string
	// 3-letter ISO code.
	Currency string
}

// Apply inserts basic catalog data for manual testing. It is idempotent:
// the product repository upserts by SKU.
func Apply(ctx context.Context, pool *pgxpool.Pool, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	repo := productrepo.NewPostgres(pool, logger)

	variations := []variationSeed{
		{SKU: "ebook-go-basics", Title: "Go Basics (eBook)", Amount: "12.50", Currency: "USD"},
		{SKU: "ebook-sql-deep-dive", Title: "SQL Deep Dive (eBook)", Amount: "19.99", Currency: "USD"},
		{SKU: "video-profiling", Title: "Profiling Walkthrough (Video)", Amount: "29.00", Currency: "USD"},
		{SKU: "ebook-jp-edition", Title: "Go Basics, Japanese Edition", Amount: "1500", Currency: "JPY"},
	}

	for _, s := range variations {
		price, err := domain.NewPrice(s.Amount, s.Currency)
		if err != nil {
			return fmt.Errorf("seed %s: %w", s.SKU, err)
		}
		saved, err := repo.Upsert(ctx, domain.ProductVariation{
			SKU:   s.SKU,
			Title: s.Title,
			Price: price,
		})
		if err != nil {
			return fmt.Errorf("upsert %s: %w", s.SKU, err)
		}
		logger.Printf("seeded variation sku=%s id=%s", saved.SKU, saved.ID)
	}
	return nil
}
