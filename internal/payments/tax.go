package payments

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"notroom/internal/providers"
	"notroom/internal/utils"
	"notroom/pkg/types"

	"github.com/go-pdf/fpdf"
	"github.com/sirupsen/logrus"
)

type TaxDocumentStore interface {
	SaveTaxDocument(ctx context.Context, doc *types.TaxDocument) error
}

// DocumentStore persists rendered 1099 summaries.
type DocumentStore interface {
	PutDocument(ctx context.Context, key string, body []byte, contentType string) error
}

// TaxService aggregates a notary's completed payments into year-end 1099
// summaries.
type TaxService struct {
	logger   *logrus.Logger
	payments PaymentStore
	notaries NotaryStore
	taxDocs  TaxDocumentStore
	storage  DocumentStore
}

func NewTaxService(
	logger *logrus.Logger,
	payments PaymentStore,
	notaries NotaryStore,
	taxDocs TaxDocumentStore,
	storage DocumentStore,
) *TaxService {
	return &TaxService{
		logger:   logger,
		payments: payments,
		notaries: notaries,
		taxDocs:  taxDocs,
		storage:  storage,
	}
}

const earliestTaxYear = 2020

// ValidateTaxYear enforces the year bounds at the API/CLI boundary. The
// current year is rejected because it is not yet closed.
func ValidateTaxYear(year int) error {
	if year < earliestTaxYear {
		return fmt.Errorf("tax year %d is before %d", year, earliestTaxYear)
	}
	if year >= time.Now().Year() {
		return fmt.Errorf("tax year %d is not closed yet", year)
	}
	return nil
}

// GenerateTaxDocument sums the notary's completed payments for the year.
// A total under the $600 reporting threshold returns (nil, nil): no 1099
// required is an expected outcome, not a failure.
func (s *TaxService) GenerateTaxDocument(ctx context.Context, notaryID string, year int) (*types.TaxDocument, error) {

	notary, err := s.notaries.Notary(ctx, notaryID)
	if err != nil {
		return nil, err
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)

	completed, err := s.payments.CompletedPaymentsForNotary(ctx, notaryID, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch completed payments for %s/%d: %w", notaryID, year, err)
	}

	var total int64
	for _, payment := range completed {
		total += payment.AmountCents
	}

	if total < types.TaxDocumentThresholdCents {
		s.logger.WithFields(logrus.Fields{
			"notary_id":   notaryID,
			"year":        year,
			"total_cents": total,
		}).Info("total below reporting threshold, no 1099 required")
		return nil, nil
	}

	doc := &types.TaxDocument{
		NotaryID:         notaryID,
		Year:             year,
		TotalAmountCents: total,
		PaymentCount:     len(completed),
	}

	if s.storage != nil {
		key := fmt.Sprintf("tax-documents/%d/%s.pdf", year, notaryID)
		pdfBytes, err := renderTaxSummaryPDF(notary, doc)
		if err != nil {
			s.logger.WithError(err).WithField("notary_id", notaryID).
				Warn("1099 PDF rendering failed, saving summary without document")
		} else if err := s.storage.PutDocument(ctx, key, pdfBytes, "application/pdf"); err != nil {
			s.logger.WithError(err).WithField("key", key).
				Warn("1099 PDF upload failed, saving summary without document")
		} else {
			doc.StorageKey = utils.StringPtr(key)
		}
	}

	if err := s.taxDocs.SaveTaxDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save tax document for %s/%d: %w", notaryID, year, err)
	}

	s.logger.WithFields(logrus.Fields{
		"notary_id":   notaryID,
		"year":        year,
		"total_cents": total,
		"payments":    len(completed),
	}).Info("1099 summary generated")

	return doc, nil
}

// GenerateAll runs the yearly batch for every active notary. Notaries under
// the threshold are skipped, not counted as failures.
func (s *TaxService) GenerateAll(ctx context.Context, year int) ([]*types.TaxDocument, error) {

	notaries, err := s.notaries.ActiveNotaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch active notaries: %w", err)
	}

	var docs []*types.TaxDocument
	for _, notary := range notaries {
		doc, err := s.GenerateTaxDocument(ctx, notary.ID, year)
		if err != nil {
			s.logger.WithError(err).WithField("notary_id", notary.ID).
				Error("tax document generation failed")
			continue
		}
		if doc != nil {
			docs = append(docs, doc)
		}
	}

	return docs, nil
}

func renderTaxSummaryPDF(notary *types.Notary, doc *types.TaxDocument) ([]byte, error) {

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Form 1099-NEC Summary - Tax Year %d", doc.Year))
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Recipient: %s", notary.Name))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Recipient email: %s", notary.Email))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Completed payments: %d", doc.PaymentCount))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 10, fmt.Sprintf("Nonemployee compensation: %s", providers.FormatPrice(doc.TotalAmountCents)))
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "I", 9)
	pdf.Cell(0, 6, "Summary produced by Notroom for 1099 preparation. Not an official IRS filing.")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	return buf.Bytes(), nil
}
