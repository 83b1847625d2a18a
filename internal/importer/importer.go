package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"digitalstore/internal/domain"
)

type VariationWriter interface {
	Upsert(ctx context.Context, v domain.ProductVariation) (*domain.ProductVariation, error)
}

// CSVImporter reads a catalog CSV export and inserts/updates product
// variations. Expected headers: sku, title, amount, currency; an optional
// id column preserves identifiers across environments.
type CSVImporter struct {
	reader *csv.Reader
	repo   VariationWriter
}

func NewCSVImporter(r io.Reader, repo VariationWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader: csvr,
		repo:   repo,
	}
}

// Run parses CSV rows and upserts one variation per row. It returns the
// number of imported variations.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)

	var imported int
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}

		sku := pick(record, index, "sku")
		title := pick(record, index, "title")
		amount := pick(record, index, "amount")
		currency := pick(record, index, "currency")
		id := pick(record, index, "id")

		// Blank lines and comment rows are skipped silently.
		if sku == "" && title == "" && amount == "" {
			continue
		}
		if sku == "" || title == "" || amount == "" || currency == "" {
			return imported, fmt.Errorf("invalid row (missing required fields) for sku %q", sku)
		}
		if id != "" && len(id) != 36 {
			return imported, fmt.Errorf("invalid id for sku %q: %s", sku, id)
		}

		price, err := domain.NewPrice(amount, currency)
		if err != nil {
			return imported, fmt.Errorf("price for sku %q: %w", sku, err)
		}

		if _, err := i.repo.Upsert(ctx, domain.ProductVariation{
			ID:    id,
			SKU:   sku,
			Title: title,
			Price: price,
		}); err != nil {
			return imported, fmt.Errorf("upsert variation %q: %w", sku, err)
		}
		imported++
	}

	return imported, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
