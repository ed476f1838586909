package store

import (
	"context"
	"fmt"
	"time"

	"notroom/internal/utils"
	"notroom/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taxDocumentTableName = "notroom.tax_documents"

var taxDocumentColumns = utils.StructTagValues(types.TaxDocument{})

type TaxDocumentRepository struct {
	pool *pgxpool.Pool
}

func NewTaxDocumentRepository(pool *pgxpool.Pool) *TaxDocumentRepository {
	return &TaxDocumentRepository{pool: pool}
}

func (r *TaxDocumentRepository) TaxDocument(ctx context.Context, notaryID string, year int) (*types.TaxDocument, error) {

	query, args, err := psql().Select(taxDocumentColumns...).From(taxDocumentTableName).
		Where(sq.Eq{"notary_id": notaryID, "year": year}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate tax document query: %w", err)
	}

	var doc = new(types.TaxDocument)
	err = pgxscan.Get(ctx, r.pool, doc, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, err
	}

	if err != nil {
		return nil, nil
	}

	return doc, nil
}

// SaveTaxDocument replaces any existing document for the (notary, year) key.
// Regeneration is a legitimate operation when late payments land.
func (r *TaxDocumentRepository) SaveTaxDocument(ctx context.Context, doc *types.TaxDocument) error {

	if doc.ID == "" {
		doc.ID = utils.NanoID()
	}
	doc.GeneratedAt = time.Now()

	delQuery, delArgs, err := psql().Delete(taxDocumentTableName).
		Where(sq.Eq{"notary_id": doc.NotaryID, "year": doc.Year}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate tax document delete query: %w", err)
	}

	if _, err := r.pool.Exec(ctx, delQuery, delArgs...); err != nil {
		return fmt.Errorf("failed to clear existing tax document: %w", err)
	}

	docMap := utils.StructToMap(doc)

	query, args, err := psql().Insert(taxDocumentTableName).SetMap(docMap).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert tax document query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to save tax document")
}
