package internal

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Sheet layout shared by every uploaded workbook: two header rows, one
// summary row, then data rows. The ledger additionally treats the first
// four rows as the header snapshot it stores per date.
const (
	SummaryRowIndex   = 2
	DataRowStart      = 3
	HeaderSnapshotLen = 4

	PaymentDateCol = 21
	DifferenceCol  = 15
	DifferenceFlag = "difference"
)

type SheetType string

const (
	SheetOrder          SheetType = "order"
	SheetOrderReceipt   SheetType = "order-receipt"
	SheetReceiptInquiry SheetType = "receipt-inquiry"
	SheetNextOrder      SheetType = "next-order"
)

type CellKind int

const (
	CellEmpty CellKind = iota
	CellNumber
	CellText
)

// Cell is one canonical spreadsheet value: a number, a trimmed text, or
// empty. JSON form is the bare scalar (null, number, or string) so a row
// matrix round-trips through storage unchanged.
type Cell struct {
	kind CellKind
	num  float64
	text string
}

func EmptyCell() Cell           { return Cell{} }
func NumberCell(v float64) Cell { return Cell{kind: CellNumber, num: v} }
func TextCell(v string) Cell    { return Cell{kind: CellText, text: v} }

func (c Cell) Kind() CellKind { return c.kind }
func (c Cell) IsEmpty() bool  { return c.kind == CellEmpty }

func (c Cell) Number() (float64, bool) {
	if c.kind != CellNumber {
		return 0, false
	}
	return c.num, true
}

func (c Cell) Text() string {
	if c.kind != CellText {
		return ""
	}
	return c.text
}

func (c Cell) Display() string {
	switch c.kind {
	case CellNumber:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", c.num), "0"), ".")
	case CellText:
		return c.text
	default:
		return ""
	}
}

func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case CellNumber:
		return json.Marshal(c.num)
	case CellText:
		return json.Marshal(c.text)
	default:
		return []byte("null"), nil
	}
}

func (c *Cell) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*c = Cell{}
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = TextCell(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = NumberCell(n)
	return nil
}

type Row []Cell

// Cell returns the cell at idx, or an empty cell when the row is shorter.
func (r Row) Cell(idx int) Cell {
	if idx < 0 || idx >= len(r) {
		return EmptyCell()
	}
	return r[idx]
}

// Sheet is a normalized workbook sheet: canonical matrix plus the
// metadata recorded at load time.
type Sheet struct {
	Name     string    `json:"sheetName"`
	Type     SheetType `json:"sheetType"`
	Rows     []Row     `json:"data"`
	RowCount int       `json:"rows"`
	ColCount int       `json:"cols"`
	FilePath string    `json:"filePath"`
	LoadedAt string    `json:"loadedAt"`
	Warnings []string  `json:"warnings,omitempty"`
}

// LoadResult is what the ingestion orchestrator hands back. Reader
// failures land in Error; the orchestrator itself never faults.
type LoadResult struct {
	Success     bool     `json:"success"`
	Sheets      []*Sheet `json:"sheets,omitempty"`
	TotalSheets int      `json:"totalSheets"`
	FilePath    string   `json:"filePath"`
	Error       string   `json:"error,omitempty"`
}

type RecordKind string

const (
	KindPayment RecordKind = "payment"
	KindReorder RecordKind = "reorder"
)

// TransactionRecord is one accumulated payment or re-order line. Created
// once per identity per date, never updated, only bulk-deleted.
type TransactionRecord struct {
	ID            int
	Date          string
	Kind          RecordKind
	ReorderType   string
	CompanyName   string
	ProductCode   string
	ProductName   string
	ProductOption string
	UnitPrice     float64
	Qty           int
	Amount        float64
	RawRow        Row
	CreatedBy     string
	CreatedAt     string
}

// IdentityKey is the dedup key: price and amount deliberately excluded,
// so re-uploads that only differ in pricing count as duplicates.
func (t TransactionRecord) IdentityKey() string {
	return IdentityKey(t.CompanyName, t.ProductCode, t.ProductName, t.ProductOption, t.Qty)
}

func IdentityKey(company, code, name, option string, qty int) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d", company, code, name, option, qty)
}

// ClientStats are the running per-company totals updated with each
// ingested batch.
type ClientStats struct {
	CompanyName     string
	OrderCount      int
	TotalAmount     float64
	LastPaymentDate string
	LastOrderDate   string
}

type StoredSheetInfo struct {
	FileStem  string
	SheetName string
	Type      SheetType
	RowCount  int
	ColCount  int
	LoadedAt  string
}

type IntakeRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
