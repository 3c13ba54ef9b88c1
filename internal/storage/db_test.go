package storage

import (
	"path/filepath"
	"testing"

	"daybook/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "daybook.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSheetRoundTrip(t *testing.T) {
	db := openTestDB(t)

	sheet := &internal.Sheet{
		Name: "0812",
		Type: internal.SheetOrder,
		Rows: []internal.Row{
			{internal.TextCell("업체명"), internal.NumberCell(3), internal.EmptyCell()},
		},
		RowCount: 1,
		ColCount: 3,
		FilePath: "/tmp/주문서.xlsx",
		LoadedAt: "2024-08-12T00:00:00Z",
	}
	if err := db.UpsertSheet("주문서_0812", sheet); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetSheet("주문서_0812", "0812")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Type != internal.SheetOrder || got.RowCount != 1 {
		t.Fatalf("got=%+v", got)
	}
	row := got.Rows[0]
	if row.Cell(0).Text() != "업체명" {
		t.Fatalf("text cell=%+v", row.Cell(0))
	}
	if v, ok := row.Cell(1).Number(); !ok || v != 3 {
		t.Fatalf("number cell=%+v", row.Cell(1))
	}
	if !row.Cell(2).IsEmpty() {
		t.Fatalf("empty cell=%+v", row.Cell(2))
	}

	missing, err := db.GetSheet("주문서_0812", "nope")
	if err != nil || missing != nil {
		t.Fatalf("missing=%v err=%v", missing, err)
	}
}

func TestListAndDeleteSheets(t *testing.T) {
	db := openTestDB(t)
	sheet := &internal.Sheet{Name: "a", Type: internal.SheetOrder, LoadedAt: "2024-08-12T00:00:00Z"}
	if err := db.UpsertSheet("stem1", sheet); err != nil {
		t.Fatal(err)
	}
	sheet.Name = "b"
	if err := db.UpsertSheet("stem1", sheet); err != nil {
		t.Fatal(err)
	}

	infos, err := db.ListSheets()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("infos=%d", len(infos))
	}

	deleted, err := db.DeleteSheets()
	if err != nil || deleted != 2 {
		t.Fatalf("deleted=%d err=%v", deleted, err)
	}
}

func TestIntakeLifecycle(t *testing.T) {
	db := openTestDB(t)

	row, err := db.UpsertIntake("imap", "<msg-1@supplier>", "주문서", "supplier@example.com",
		"2024-08-12T01:00:00Z", "deadbeef", "/tmp/deadbeef.eml", "fetched")
	if err != nil {
		t.Fatal(err)
	}
	if row.ID == 0 || row.Status != "fetched" {
		t.Fatalf("row=%+v", row)
	}

	// Re-fetching the same message must not duplicate the row.
	again, err := db.UpsertIntake("imap", "<msg-1@supplier>", "주문서 (재전송)", "supplier@example.com",
		"2024-08-12T02:00:00Z", "deadbeef", "/tmp/deadbeef.eml", "fetched")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != row.ID {
		t.Fatalf("duplicated: %d != %d", again.ID, row.ID)
	}

	pending, err := db.ListIntakeByStatus("fetched", 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending=%d err=%v", len(pending), err)
	}

	if err := db.UpdateIntakeStatus(row.ID, "processed"); err != nil {
		t.Fatal(err)
	}
	pending, err = db.ListIntakeByStatus("fetched", 10)
	if err != nil || len(pending) != 0 {
		t.Fatalf("pending after update=%d err=%v", len(pending), err)
	}
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)
	if v, err := db.GetMetadata("lastSweep"); err != nil || v != nil {
		t.Fatalf("initial=%v err=%v", v, err)
	}
	if err := db.SetMetadata("lastSweep", "2024-08-12"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata("lastSweep", "2024-08-13"); err != nil {
		t.Fatal(err)
	}
	v, err := db.GetMetadata("lastSweep")
	if err != nil || v == nil || *v != "2024-08-13" {
		t.Fatalf("value=%v err=%v", v, err)
	}
}

func TestHeaderSnapshotUpsert(t *testing.T) {
	db := openTestDB(t)
	header := []internal.Row{{internal.TextCell("v1")}}
	if err := db.AppendBatch("2024-08-12", internal.KindPayment, nil, header); err != nil {
		t.Fatal(err)
	}
	header[0][0] = internal.TextCell("v2")
	if err := db.AppendBatch("2024-08-12", internal.KindPayment, nil, header); err != nil {
		t.Fatal(err)
	}

	got, err := db.HeaderSnapshot("2024-08-12", internal.KindPayment)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Cell(0).Text() != "v2" {
		t.Fatalf("snapshot=%+v", got)
	}

	missing, err := db.HeaderSnapshot("2024-01-01", internal.KindPayment)
	if err != nil || missing != nil {
		t.Fatalf("missing=%v err=%v", missing, err)
	}
}
