package extraction

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/invoice-intake/internal/invoice"
)

// Outcome carries both record shapes produced from one document.
type Outcome struct {
	Raw      []invoice.RawRecord
	Business []invoice.Record
	Groups   int
}

// Service runs an Extractor and maps its output.
type Service struct {
	extractor Extractor
	provider  string
}

// NewService wraps an extractor. provider is reported on /health.
func NewService(extractor Extractor, provider string) *Service {
	return &Service{extractor: extractor, provider: provider}
}

// Provider names the configured vendor.
func (s *Service) Provider() string {
	return s.provider
}

// Run extracts and maps a document. A document yielding no record in either
// shape is reported as ErrEmptyResult.
func (s *Service) Run(ctx context.Context, doc Document) (*Outcome, error) {
	results, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		var extErr *Error
		if errors.As(err, &extErr) {
			return nil, err
		}
		return nil, newError(KindTransport, "extraction.Service.Run", err)
	}

	out := &Outcome{
		Raw:      MapRaw(results),
		Business: MapBusiness(results),
		Groups:   len(results),
	}
	if len(out.Raw) == 0 && len(out.Business) == 0 {
		return nil, newError(KindEmptyResult, "extraction.Service.Run", fmt.Errorf("%d prediction groups, none matched a known label", len(results)))
	}
	return out, nil
}
