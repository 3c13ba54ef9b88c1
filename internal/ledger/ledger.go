package ledger

import (
	"fmt"
	"time"

	"daybook/internal"
	"daybook/internal/storage"
	"daybook/internal/util"
)

// Payment rows carry their amount in column T; re-order rows always
// derive it from price and quantity.
const (
	companyCol = 0
	codeCol    = 4
	nameCol    = 5
	optionCol  = 6
	priceCol   = 7
	qtyCol     = 14
	amountCol  = 19
)

// Service accumulates transaction records out of sheet rows, skipping
// duplicates already recorded for the same date.
type Service struct {
	db *storage.DB
}

func New(db *storage.DB) *Service {
	return &Service{db: db}
}

// Batch is one ingest request: the rows below the header block of a
// sheet, for a single date and kind.
type Batch struct {
	Date        string
	Kind        internal.RecordKind
	ReorderType string
	HeaderRows  []internal.Row
	Rows        []internal.Row
	CreatedBy   string
}

type Result struct {
	SavedCount   int    `json:"savedCount"`
	SkippedCount int    `json:"skippedCount"`
	Message      string `json:"message"`
}

// Ingest saves the batch's net-new rows and refreshes the date's header
// snapshot. Duplicate detection is check-then-act: the identity set is
// read once up front and the insert is not conditional on it, so two
// concurrent ingests of the same date can both save a row. Callers
// serialize ingests per date.
func (s *Service) Ingest(batch Batch) (Result, error) {
	if _, err := time.Parse("2006-01-02", batch.Date); err != nil {
		return Result{}, fmt.Errorf("invalid record date %q: want YYYY-MM-DD", batch.Date)
	}
	switch batch.Kind {
	case internal.KindPayment, internal.KindReorder:
	default:
		return Result{}, fmt.Errorf("invalid record kind %q", batch.Kind)
	}

	seen, err := s.db.ListIdentities(batch.Date, batch.Kind)
	if err != nil {
		return Result{}, err
	}

	var fresh []internal.TransactionRecord
	skipped := 0
	for _, row := range batch.Rows {
		company := row.Cell(companyCol).Display()
		if company == "" {
			// Blank-company rows are padding, not data: they count toward
			// neither saved nor skipped.
			continue
		}

		rec := internal.TransactionRecord{
			Date:          batch.Date,
			Kind:          batch.Kind,
			ReorderType:   batch.ReorderType,
			CompanyName:   company,
			ProductCode:   row.Cell(codeCol).Display(),
			ProductName:   row.Cell(nameCol).Display(),
			ProductOption: row.Cell(optionCol).Display(),
			UnitPrice:     util.FloatOrZero(row.Cell(priceCol)),
			Qty:           util.IntOrZero(row.Cell(qtyCol)),
			RawRow:        row,
			CreatedBy:     batch.CreatedBy,
		}
		rec.Amount = amountFor(batch.Kind, row, rec.UnitPrice, rec.Qty)

		key := rec.IdentityKey()
		if _, dup := seen[key]; dup {
			skipped++
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, rec)
	}

	if err := s.db.AppendBatch(batch.Date, batch.Kind, fresh, batch.HeaderRows); err != nil {
		return Result{}, err
	}

	return Result{
		SavedCount:   len(fresh),
		SkippedCount: skipped,
		Message:      fmt.Sprintf("saved %d records, skipped %d duplicates", len(fresh), skipped),
	}, nil
}

func amountFor(kind internal.RecordKind, row internal.Row, price float64, qty int) float64 {
	if kind == internal.KindPayment {
		if v, ok := util.CoerceFloat(row.Cell(amountCol)); ok {
			return v
		}
	}
	return price * float64(qty)
}

// DaySummary is one date's records with totals, plus the header rows
// snapshotted when the date was first ingested.
type DaySummary struct {
	Date          string
	Records       []internal.TransactionRecord
	TotalAmount   float64
	CompanyTotals map[string]float64
	HeaderRows    []internal.Row
}

func (s *Service) Day(date string, kind internal.RecordKind) (DaySummary, error) {
	records, err := s.db.RecordsByDate(date, kind)
	if err != nil {
		return DaySummary{}, err
	}
	header, err := s.db.HeaderSnapshot(date, kind)
	if err != nil {
		return DaySummary{}, err
	}

	summary := DaySummary{
		Date:          date,
		Records:       records,
		CompanyTotals: map[string]float64{},
		HeaderRows:    header,
	}
	for _, r := range records {
		summary.TotalAmount += r.Amount
		summary.CompanyTotals[r.CompanyName] += r.Amount
	}
	return summary, nil
}

type RangeSummary struct {
	Start         string
	End           string
	Records       []internal.TransactionRecord
	TotalAmount   float64
	DateTotals    map[string]float64
	CompanyTotals map[string]float64
}

func (s *Service) Range(start, end string, kind internal.RecordKind) (RangeSummary, error) {
	for _, date := range []string{start, end} {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return RangeSummary{}, fmt.Errorf("invalid range date %q: want YYYY-MM-DD", date)
		}
	}

	records, err := s.db.RecordsByRange(start, end, kind)
	if err != nil {
		return RangeSummary{}, err
	}

	summary := RangeSummary{
		Start:         start,
		End:           end,
		Records:       records,
		DateTotals:    map[string]float64{},
		CompanyTotals: map[string]float64{},
	}
	for _, r := range records {
		summary.TotalAmount += r.Amount
		summary.DateTotals[r.Date] += r.Amount
		summary.CompanyTotals[r.CompanyName] += r.Amount
	}
	return summary, nil
}

func (s *Service) Dates(kind internal.RecordKind) ([]string, error) {
	return s.db.DistinctDates(kind)
}

// Clear removes every record of a kind. Returns the deleted count.
func (s *Service) Clear(kind internal.RecordKind) (int64, error) {
	switch kind {
	case internal.KindPayment, internal.KindReorder:
	default:
		return 0, fmt.Errorf("invalid record kind %q", kind)
	}
	return s.db.DeleteRecords(kind)
}
