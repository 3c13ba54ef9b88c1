package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"daybook/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  recordDate TEXT NOT NULL,
  kind TEXT NOT NULL,
  reorderType TEXT NOT NULL DEFAULT '',
  companyName TEXT NOT NULL,
  productCode TEXT NOT NULL DEFAULT '',
  productName TEXT NOT NULL DEFAULT '',
  productOption TEXT NOT NULL DEFAULT '',
  unitPrice REAL NOT NULL DEFAULT 0,
  qty INTEGER NOT NULL DEFAULT 0,
  amount REAL NOT NULL DEFAULT 0,
  rawRow TEXT NOT NULL,
  createdBy TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_records_date_kind ON records(recordDate, kind);
CREATE INDEX IF NOT EXISTS idx_records_company ON records(companyName);

CREATE TABLE IF NOT EXISTS header_snapshots (
  recordDate TEXT NOT NULL,
  kind TEXT NOT NULL,
  rowsJson TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (recordDate, kind)
);

CREATE TABLE IF NOT EXISTS sheets (
  fileStem TEXT NOT NULL,
  sheetName TEXT NOT NULL,
  sheetType TEXT NOT NULL,
  dataJson TEXT NOT NULL,
  rowCount INTEGER NOT NULL DEFAULT 0,
  colCount INTEGER NOT NULL DEFAULT 0,
  filePath TEXT NOT NULL DEFAULT '',
  loadedAt TEXT NOT NULL,
  PRIMARY KEY (fileStem, sheetName)
);

CREATE TABLE IF NOT EXISTS clients (
  companyName TEXT PRIMARY KEY,
  orderCount INTEGER NOT NULL DEFAULT 0,
  totalAmount REAL NOT NULL DEFAULT 0,
  lastPaymentDate TEXT,
  lastOrderDate TEXT,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS intake_files (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// ListIdentities loads the identity tuples already recorded for a date
// and kind. Loaded once per ingest call; the check against it is not
// atomic with the insert.
func (d *DB) ListIdentities(date string, kind internal.RecordKind) (map[string]struct{}, error) {
	rows, err := d.conn.Query(`
SELECT companyName, productCode, productName, productOption, qty
FROM records WHERE recordDate = ? AND kind = ?
`, date, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var company, code, name, option string
		var qty int
		if err := rows.Scan(&company, &code, &name, &option, &qty); err != nil {
			return nil, err
		}
		out[internal.IdentityKey(company, code, name, option, qty)] = struct{}{}
	}
	return out, rows.Err()
}

// AppendBatch persists one ingested batch atomically: the net-new
// records, the per-company running totals, and the header snapshot for
// the date. Any failure rolls the whole batch back.
func (d *DB) AppendBatch(date string, kind internal.RecordKind, records []internal.TransactionRecord, headerRows []internal.Row) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	insert, err := tx.Prepare(`
INSERT INTO records (recordDate, kind, reorderType, companyName, productCode, productName, productOption, unitPrice, qty, amount, rawRow, createdBy)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer insert.Close()

	var lastPayment, lastOrder *string
	if kind == internal.KindPayment {
		lastPayment = &date
	} else {
		lastOrder = &date
	}

	clientUpsert, err := tx.Prepare(`
INSERT INTO clients (companyName, orderCount, totalAmount, lastPaymentDate, lastOrderDate)
VALUES (?, 1, ?, ?, ?)
ON CONFLICT(companyName) DO UPDATE SET
  orderCount = orderCount + 1,
  totalAmount = totalAmount + excluded.totalAmount,
  lastPaymentDate = COALESCE(excluded.lastPaymentDate, lastPaymentDate),
  lastOrderDate = COALESCE(excluded.lastOrderDate, lastOrderDate),
  updatedAt = CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer clientUpsert.Close()

	for _, r := range records {
		rawJSON, _ := json.Marshal(r.RawRow)
		if _, err := insert.Exec(
			date, string(kind), r.ReorderType, r.CompanyName, r.ProductCode, r.ProductName, r.ProductOption,
			r.UnitPrice, r.Qty, r.Amount, string(rawJSON), r.CreatedBy,
		); err != nil {
			return err
		}
		if _, err := clientUpsert.Exec(r.CompanyName, r.Amount, lastPayment, lastOrder); err != nil {
			return err
		}
	}

	if len(headerRows) > 0 {
		rowsJSON, _ := json.Marshal(headerRows)
		if _, err := tx.Exec(`
INSERT INTO header_snapshots (recordDate, kind, rowsJson) VALUES (?, ?, ?)
ON CONFLICT(recordDate, kind) DO UPDATE SET rowsJson = excluded.rowsJson, updatedAt = CURRENT_TIMESTAMP
`, date, string(kind), string(rowsJSON)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) HeaderSnapshot(date string, kind internal.RecordKind) ([]internal.Row, error) {
	var rowsJSON string
	err := d.conn.QueryRow(`SELECT rowsJson FROM header_snapshots WHERE recordDate = ? AND kind = ?`, date, string(kind)).Scan(&rowsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []internal.Row
	if err := json.Unmarshal([]byte(rowsJSON), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) RecordsByDate(date string, kind internal.RecordKind) ([]internal.TransactionRecord, error) {
	return d.queryRecords(`
SELECT id, recordDate, kind, reorderType, companyName, productCode, productName, productOption, unitPrice, qty, amount, rawRow, createdBy, createdAt
FROM records WHERE recordDate = ? AND kind = ?
ORDER BY companyName, id
`, date, string(kind))
}

func (d *DB) RecordsByRange(start, end string, kind internal.RecordKind) ([]internal.TransactionRecord, error) {
	return d.queryRecords(`
SELECT id, recordDate, kind, reorderType, companyName, productCode, productName, productOption, unitPrice, qty, amount, rawRow, createdBy, createdAt
FROM records WHERE recordDate >= ? AND recordDate <= ? AND kind = ?
ORDER BY recordDate, companyName, id
`, start, end, string(kind))
}

func (d *DB) queryRecords(query string, args ...any) ([]internal.TransactionRecord, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.TransactionRecord
	for rows.Next() {
		var r internal.TransactionRecord
		var kind, rawJSON string
		var createdBy sql.NullString
		if err := rows.Scan(
			&r.ID, &r.Date, &kind, &r.ReorderType, &r.CompanyName, &r.ProductCode, &r.ProductName, &r.ProductOption,
			&r.UnitPrice, &r.Qty, &r.Amount, &rawJSON, &createdBy, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		r.Kind = internal.RecordKind(kind)
		r.CreatedBy = createdBy.String
		_ = json.Unmarshal([]byte(rawJSON), &r.RawRow)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) DistinctDates(kind internal.RecordKind) ([]string, error) {
	rows, err := d.conn.Query(`SELECT DISTINCT recordDate FROM records WHERE kind = ? ORDER BY recordDate DESC`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, err
		}
		out = append(out, date)
	}
	return out, rows.Err()
}

// DeleteRecords wipes every record of a kind plus its header snapshots.
// Destructive and irreversible; operator-triggered only.
func (d *DB) DeleteRecords(kind internal.RecordKind) (int64, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`DELETE FROM records WHERE kind = ?`, string(kind))
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`DELETE FROM header_snapshots WHERE kind = ?`, string(kind)); err != nil {
		return 0, err
	}
	deleted, _ := res.RowsAffected()
	return deleted, tx.Commit()
}

func (d *DB) UpsertSheet(fileStem string, sheet *internal.Sheet) error {
	dataJSON, err := json.Marshal(sheet.Rows)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
INSERT INTO sheets (fileStem, sheetName, sheetType, dataJson, rowCount, colCount, filePath, loadedAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(fileStem, sheetName) DO UPDATE SET
  sheetType = excluded.sheetType,
  dataJson = excluded.dataJson,
  rowCount = excluded.rowCount,
  colCount = excluded.colCount,
  filePath = excluded.filePath,
  loadedAt = excluded.loadedAt
`, fileStem, sheet.Name, string(sheet.Type), string(dataJSON), sheet.RowCount, sheet.ColCount, sheet.FilePath, sheet.LoadedAt)
	return err
}

func (d *DB) GetSheet(fileStem, sheetName string) (*internal.Sheet, error) {
	var sheet internal.Sheet
	var sheetType, dataJSON string
	err := d.conn.QueryRow(`
SELECT sheetName, sheetType, dataJson, rowCount, colCount, filePath, loadedAt
FROM sheets WHERE fileStem = ? AND sheetName = ?
`, fileStem, sheetName).Scan(&sheet.Name, &sheetType, &dataJSON, &sheet.RowCount, &sheet.ColCount, &sheet.FilePath, &sheet.LoadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sheet.Type = internal.SheetType(sheetType)
	if err := json.Unmarshal([]byte(dataJSON), &sheet.Rows); err != nil {
		return nil, err
	}
	return &sheet, nil
}

func (d *DB) ListSheets() ([]internal.StoredSheetInfo, error) {
	rows, err := d.conn.Query(`
SELECT fileStem, sheetName, sheetType, rowCount, colCount, loadedAt
FROM sheets ORDER BY loadedAt DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.StoredSheetInfo
	for rows.Next() {
		var info internal.StoredSheetInfo
		var sheetType string
		if err := rows.Scan(&info.FileStem, &info.SheetName, &sheetType, &info.RowCount, &info.ColCount, &info.LoadedAt); err != nil {
			return nil, err
		}
		info.Type = internal.SheetType(sheetType)
		out = append(out, info)
	}
	return out, rows.Err()
}

func (d *DB) DeleteSheets() (int64, error) {
	res, err := d.conn.Exec(`DELETE FROM sheets`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) ListClients() ([]internal.ClientStats, error) {
	rows, err := d.conn.Query(`
SELECT companyName, orderCount, totalAmount, lastPaymentDate, lastOrderDate
FROM clients ORDER BY companyName
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ClientStats
	for rows.Next() {
		var c internal.ClientStats
		var lastPayment, lastOrder sql.NullString
		if err := rows.Scan(&c.CompanyName, &c.OrderCount, &c.TotalAmount, &lastPayment, &lastOrder); err != nil {
			return nil, err
		}
		c.LastPaymentDate = lastPayment.String
		c.LastOrderDate = lastOrder.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) GetClient(companyName string) (*internal.ClientStats, error) {
	var c internal.ClientStats
	var lastPayment, lastOrder sql.NullString
	err := d.conn.QueryRow(`
SELECT companyName, orderCount, totalAmount, lastPaymentDate, lastOrderDate
FROM clients WHERE companyName = ?
`, companyName).Scan(&c.CompanyName, &c.OrderCount, &c.TotalAmount, &lastPayment, &lastOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.LastPaymentDate = lastPayment.String
	c.LastOrderDate = lastOrder.String
	return &c, nil
}

func (d *DB) UpsertIntake(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.IntakeRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO intake_files (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject = excluded.subject,
  sender = excluded.sender,
  receivedAt = excluded.receivedAt,
  hash = excluded.hash,
  rawRef = excluded.rawRef,
  updatedAt = CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.IntakeRow{}, err
	}

	row, err := d.GetIntakeByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.IntakeRow{}, err
	}
	if row == nil {
		return internal.IntakeRow{}, errors.New("failed to upsert intake row")
	}
	return *row, nil
}

func (d *DB) GetIntakeByProviderMessageID(provider, messageID string) (*internal.IntakeRow, error) {
	var row internal.IntakeRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM intake_files WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListIntakeByStatus(status string, limit int) ([]internal.IntakeRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM intake_files WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.IntakeRow
	for rows.Next() {
		var row internal.IntakeRow
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateIntakeStatus(id int, status string) error {
	_, err := d.conn.Exec(`UPDATE intake_files SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (d *DB) MustIntakeByProviderMessageID(provider, messageID string) (internal.IntakeRow, error) {
	row, err := d.GetIntakeByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.IntakeRow{}, err
	}
	if row == nil {
		return internal.IntakeRow{}, fmt.Errorf("intake row not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}
