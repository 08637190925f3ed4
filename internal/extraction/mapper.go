package extraction

import (
	"strings"

	"github.com/dvloznov/invoice-intake/internal/invoice"
	"github.com/dvloznov/invoice-intake/internal/rules"
)

// MatchFields applies a policy to one prediction group. For each field the
// first non-empty value seen wins.
func MatchFields(p Policy, predictions []Prediction) map[string]string {
	fields := make(map[string]string)
	for _, pred := range predictions {
		value := strings.TrimSpace(pred.OCRText)
		if value == "" {
			continue
		}
		field, ok := p.FieldFor(pred.Label)
		if !ok {
			continue
		}
		if _, seen := fields[field]; seen {
			continue
		}
		fields[field] = value
	}
	return fields
}

// MapRaw builds one defaulted raw record per result. Results with no
// matched label are dropped.
func MapRaw(results []Result) []invoice.RawRecord {
	records := make([]invoice.RawRecord, 0, len(results))
	for _, res := range results {
		fields := MatchFields(RawPolicy, res.Prediction)
		if len(fields) == 0 {
			continue
		}
		var rec invoice.RawRecord
		for field, value := range fields {
			rec.Set(field, value)
		}
		records = append(records, rec.WithDefaults())
	}
	return records
}

// MapBusiness builds one normalized business record per result. Results
// with no matched label are dropped.
func MapBusiness(results []Result) []invoice.Record {
	records := make([]invoice.Record, 0, len(results))
	for _, res := range results {
		fields := MatchFields(BusinessPolicy, res.Prediction)
		if len(fields) == 0 {
			continue
		}
		records = append(records, rules.Transform(fields))
	}
	return records
}
