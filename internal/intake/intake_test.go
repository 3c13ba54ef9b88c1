package intake

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"daybook/internal"
	"daybook/internal/cache"
	"daybook/internal/config"
	"daybook/internal/pipeline"
	"daybook/internal/storage"
)

type fakeConnector struct {
	messages []internal.FetchedMailMessage
}

func (f *fakeConnector) FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error) {
	return f.messages, nil
}

func openTestDB(t *testing.T) (*storage.DB, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "daybook.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, dir
}

func orderXLSX(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	values := [][]any{
		{"일일 주문서"},
		{"업체명"},
		{},
		{"가나상사", "", "", "", "A001", "양말"},
	}
	for r, row := range values {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	if _, err := f.WriteTo(buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func mailWithAttachment(filename string, blob []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(blob)
	return []byte(fmt.Sprintf(`From: supplier@example.com
To: orders@example.com
Subject: daily orders
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="bnd"

--bnd
Content-Type: text/plain; charset=utf-8

attached
--bnd
Content-Type: application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
Content-Disposition: attachment; filename="%s"
Content-Transfer-Encoding: base64

%s
--bnd--
`, filename, encoded))
}

func TestFetchAndStore(t *testing.T) {
	db, dir := openTestDB(t)
	conn := &fakeConnector{messages: []internal.FetchedMailMessage{{
		Provider:   "imap",
		MessageID:  "<msg-1@supplier>",
		Subject:    "daily orders",
		From:       "supplier@example.com",
		ReceivedAt: "2024-08-12T01:00:00Z",
		Raw:        mailWithAttachment("주문서_0812.xlsx", []byte("blob")),
	}}}

	svc := NewFetchService(db, filepath.Join(dir, "inbox"), conn)
	result, err := svc.FetchAndStore("INBOX", 10)
	if err != nil {
		t.Fatal(err)
	}
	if result.Fetched != 1 || result.Stored != 1 {
		t.Fatalf("result=%+v", result)
	}

	row, err := db.GetIntakeByProviderMessageID("imap", "<msg-1@supplier>")
	if err != nil {
		t.Fatal(err)
	}
	if row == nil || row.Status != "fetched" {
		t.Fatalf("row=%+v", row)
	}
	if _, err := os.Stat(row.RawRef); err != nil {
		t.Fatalf("raw mail missing: %v", err)
	}

	// Fetching the same message again keeps a single intake row.
	if _, err := svc.FetchAndStore("INBOX", 10); err != nil {
		t.Fatal(err)
	}
	pending, err := db.ListIntakeByStatus("fetched", 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending=%d err=%v", len(pending), err)
	}
}

func TestProcessPendingIngestsAttachments(t *testing.T) {
	db, dir := openTestDB(t)
	inbox := filepath.Join(dir, "inbox")
	conn := &fakeConnector{messages: []internal.FetchedMailMessage{{
		Provider:   "imap",
		MessageID:  "<msg-2@supplier>",
		ReceivedAt: "2024-08-12T01:00:00Z",
		Raw:        mailWithAttachment("주문서_0812.xlsx", orderXLSX(t)),
	}}}

	fetch := NewFetchService(db, inbox, conn)
	if _, err := fetch.FetchAndStore("INBOX", 10); err != nil {
		t.Fatal(err)
	}

	pipe := pipeline.NewService(db, cache.New(4), config.Config{})
	processor := NewProcessService(db, pipe, inbox)
	messages, sheets, err := processor.ProcessPending(10)
	if err != nil {
		t.Fatal(err)
	}
	if messages != 1 || sheets != 1 {
		t.Fatalf("messages=%d sheets=%d", messages, sheets)
	}

	stored, err := db.GetSheet("주문서_0812", "Sheet1")
	if err != nil {
		t.Fatal(err)
	}
	if stored == nil || stored.Type != internal.SheetOrder {
		t.Fatalf("stored=%+v", stored)
	}

	row, err := db.GetIntakeByProviderMessageID("imap", "<msg-2@supplier>")
	if err != nil {
		t.Fatal(err)
	}
	if row.Status != "processed" {
		t.Fatalf("status=%q", row.Status)
	}
}

func TestProcessSkipsMailWithoutWorkbooks(t *testing.T) {
	db, dir := openTestDB(t)
	inbox := filepath.Join(dir, "inbox")
	conn := &fakeConnector{messages: []internal.FetchedMailMessage{{
		Provider:   "imap",
		MessageID:  "<msg-3@supplier>",
		ReceivedAt: "2024-08-12T01:00:00Z",
		Raw:        mailWithAttachment("invoice.pdf", []byte("%PDF-1.4")),
	}}}

	fetch := NewFetchService(db, inbox, conn)
	if _, err := fetch.FetchAndStore("INBOX", 10); err != nil {
		t.Fatal(err)
	}

	pipe := pipeline.NewService(db, cache.New(4), config.Config{})
	processor := NewProcessService(db, pipe, inbox)
	if _, _, err := processor.ProcessPending(10); err != nil {
		t.Fatal(err)
	}

	row, err := db.GetIntakeByProviderMessageID("imap", "<msg-3@supplier>")
	if err != nil {
		t.Fatal(err)
	}
	if row.Status != "skipped" {
		t.Fatalf("status=%q", row.Status)
	}
}
