package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"daybook/internal"
	"daybook/internal/cache"
	"daybook/internal/config"
	"daybook/internal/intake"
	imapconnector "daybook/internal/intake/imap"
	"daybook/internal/ledger"
	"daybook/internal/pipeline"
	"daybook/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	sheetCache := cache.New(cfg.SheetCacheSize)
	pipe := pipeline.NewService(db, sheetCache, cfg)
	book := ledger.New(db)

	cmd := os.Args[1]
	switch cmd {
	case "ingest":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "workbook path (.xls/.xlsx)")
		name := fs.String("name", "", "display name override for classification")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		result := pipe.LoadWorkbook(*file, *name)
		if !result.Success {
			must(fmt.Errorf("ingest failed: %s", result.Error))
		}
		for _, sheet := range result.Sheets {
			fmt.Printf("loaded sheet=%q type=%s rows=%d cols=%d\n", sheet.Name, sheet.Type, sheet.RowCount, sheet.ColCount)
		}
		fmt.Printf("ingest done sheets=%d/%d file=%s\n", len(result.Sheets), result.TotalSheets, result.FilePath)
	case "payments:save":
		saveRecords(pipe, book, internal.KindPayment, "", os.Args[2:])
	case "reorders:save":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "workbook path")
		sheet := fs.String("sheet", "", "sheet name (default: first)")
		date := fs.String("date", "", "record date YYYY-MM-DD")
		reorderType := fs.String("type", "other", "exchange|unsent|other")
		creator := fs.String("creator", "", "operator name")
		_ = fs.Parse(os.Args[2:])
		runSave(pipe, book, internal.KindReorder, *reorderType, *file, *sheet, *date, *creator)
	case "payments:show":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		date := fs.String("date", "", "record date YYYY-MM-DD")
		kind := fs.String("kind", "payment", "payment|reorder")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*date) == "" {
			must(fmt.Errorf("--date is required"))
		}
		summary, err := book.Day(*date, internal.RecordKind(*kind))
		must(err)
		for _, r := range summary.Records {
			fmt.Printf("%-20s %-12s %-30s qty=%-4d amount=%.0f\n", r.CompanyName, r.ProductCode, r.ProductName, r.Qty, r.Amount)
		}
		for company, total := range summary.CompanyTotals {
			fmt.Printf("company total %s=%.0f\n", company, total)
		}
		fmt.Printf("date=%s records=%d total=%.0f\n", *date, len(summary.Records), summary.TotalAmount)
	case "payments:range":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		start := fs.String("start", "", "start date YYYY-MM-DD")
		end := fs.String("end", "", "end date YYYY-MM-DD")
		kind := fs.String("kind", "payment", "payment|reorder")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*start) == "" || strings.TrimSpace(*end) == "" {
			must(fmt.Errorf("--start and --end are required"))
		}
		summary, err := book.Range(*start, *end, internal.RecordKind(*kind))
		must(err)
		for date, total := range summary.DateTotals {
			fmt.Printf("date total %s=%.0f\n", date, total)
		}
		fmt.Printf("range=%s..%s records=%d total=%.0f\n", *start, *end, len(summary.Records), summary.TotalAmount)
	case "payments:dates":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		kind := fs.String("kind", "payment", "payment|reorder")
		_ = fs.Parse(os.Args[2:])
		dates, err := book.Dates(internal.RecordKind(*kind))
		must(err)
		for _, d := range dates {
			fmt.Println(d)
		}
	case "records:clear":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		kind := fs.String("kind", "", "payment|reorder")
		yes := fs.Bool("yes", false, "confirm deletion")
		_ = fs.Parse(os.Args[2:])
		if !*yes {
			must(fmt.Errorf("records:clear deletes every %q record; pass --yes to confirm", *kind))
		}
		deleted, err := book.Clear(internal.RecordKind(*kind))
		must(err)
		fmt.Printf("cleared %d %s records\n", deleted, *kind)
	case "clients:list":
		clients, err := db.ListClients()
		must(err)
		for _, c := range clients {
			fmt.Printf("%-20s orders=%-4d total=%.0f lastPayment=%s lastOrder=%s\n",
				c.CompanyName, c.OrderCount, c.TotalAmount, c.LastPaymentDate, c.LastOrderDate)
		}
	case "sheets:list":
		infos, err := db.ListSheets()
		must(err)
		for _, info := range infos {
			fmt.Printf("%-24s %-16s type=%-16s rows=%-4d cols=%-3d loaded=%s\n",
				info.FileStem, info.SheetName, info.Type, info.RowCount, info.ColCount, info.LoadedAt)
		}
	case "sheets:show":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		stem := fs.String("stem", "", "file stem")
		name := fs.String("sheet", "", "sheet name")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*stem) == "" || strings.TrimSpace(*name) == "" {
			must(fmt.Errorf("--stem and --sheet are required"))
		}
		sheet, err := pipe.CachedSheet(*stem, *name)
		must(err)
		if sheet == nil {
			must(fmt.Errorf("sheet not found: %s/%s", *stem, *name))
		}
		blob, err := json.MarshalIndent(sheet, "", "  ")
		must(err)
		fmt.Println(string(blob))
	case "sheets:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		stem := fs.String("stem", "", "file stem")
		name := fs.String("sheet", "", "sheet name")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*stem) == "" || strings.TrimSpace(*name) == "" {
			must(fmt.Errorf("--stem and --sheet are required"))
		}
		sheet, err := pipe.CachedSheet(*stem, *name)
		must(err)
		if sheet == nil {
			must(fmt.Errorf("sheet not found: %s/%s", *stem, *name))
		}
		path := *out
		if strings.TrimSpace(path) == "" {
			path = filepath.Join(cfg.ExportDir, *stem+"_"+*name+".xlsx")
		}
		must(pipeline.ExportSheetToXLSX(sheet, path))
		fmt.Printf("exported sheet to %s\n", path)
	case "sheets:clear":
		deleted, err := db.DeleteSheets()
		must(err)
		fmt.Printf("cleared %d stored sheets\n", deleted)
	case "export:payments":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		date := fs.String("date", "", "record date YYYY-MM-DD")
		kind := fs.String("kind", "payment", "payment|reorder")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*date) == "" {
			must(fmt.Errorf("--date is required"))
		}
		summary, err := book.Day(*date, internal.RecordKind(*kind))
		must(err)
		if len(summary.Records) == 0 {
			must(fmt.Errorf("no %s records for %s", *kind, *date))
		}
		path := *out
		if strings.TrimSpace(path) == "" {
			path = filepath.Join(cfg.ExportDir, fmt.Sprintf("%s_%s.xlsx", *kind, *date))
		}
		must(pipeline.ExportRecordsToXLSX(summary.HeaderRows, summary.Records, path))
		fmt.Printf("exported %d records to %s\n", len(summary.Records), path)
	case "sweep:aggregates":
		changed, err := pipe.SweepAggregates()
		must(err)
		fmt.Printf("aggregate sweep done changed=%d\n", changed)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		label := fs.String("label", cfg.IntakeLabel, "mailbox/label")
		max := fs.Int("max", cfg.IntakeFetchMax, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := imapconnector.NewConnector(cfg)
		must(err)
		fetch := intake.NewFetchService(db, cfg.InboxDir, conn)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("mail fetch done fetched=%d stored=%d\n", result.Fetched, result.Stored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", cfg.IntakeFetchMax, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := intake.NewProcessService(db, pipe, cfg.InboxDir)
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID("imap", *messageID)
			must(err)
			fmt.Printf("processed message id=%d workbooks=%d sheets=%d\n", res.IntakeID, res.Workbooks, res.Sheets)
			return
		}
		messages, sheets, err := processor.ProcessPending(*batch)
		must(err)
		fmt.Printf("processed pending messages=%d sheets=%d\n", messages, sheets)
	default:
		usage()
		os.Exit(1)
	}
}

func saveRecords(pipe *pipeline.Service, book *ledger.Service, kind internal.RecordKind, reorderType string, args []string) {
	fs := flag.NewFlagSet(string(kind)+":save", flag.ExitOnError)
	file := fs.String("file", "", "workbook path")
	sheet := fs.String("sheet", "", "sheet name (default: first)")
	date := fs.String("date", "", "record date YYYY-MM-DD")
	creator := fs.String("creator", "", "operator name")
	_ = fs.Parse(args)
	runSave(pipe, book, kind, reorderType, *file, *sheet, *date, *creator)
}

func runSave(pipe *pipeline.Service, book *ledger.Service, kind internal.RecordKind, reorderType, file, sheetName, date, by string) {
	if strings.TrimSpace(file) == "" || strings.TrimSpace(date) == "" {
		must(fmt.Errorf("--file and --date are required"))
	}

	result := pipe.LoadWorkbook(file, "")
	if !result.Success {
		must(fmt.Errorf("load failed: %s", result.Error))
	}

	var sheet *internal.Sheet
	for _, s := range result.Sheets {
		if sheetName == "" || s.Name == sheetName {
			sheet = s
			break
		}
	}
	if sheet == nil {
		must(fmt.Errorf("sheet %q not found in %s", sheetName, file))
	}

	header := sheet.Rows
	if len(header) > internal.HeaderSnapshotLen {
		header = header[:internal.HeaderSnapshotLen]
	}
	var data []internal.Row
	if len(sheet.Rows) > internal.HeaderSnapshotLen {
		data = sheet.Rows[internal.HeaderSnapshotLen:]
	}

	res, err := book.Ingest(ledger.Batch{
		Date:        date,
		Kind:        kind,
		ReorderType: reorderType,
		HeaderRows:  header,
		Rows:        data,
		CreatedBy:   by,
	})
	must(err)
	fmt.Printf("%s save done date=%s saved=%d skipped=%d\n", kind, date, res.SavedCount, res.SkippedCount)
}

func usage() {
	fmt.Println("usage: daybook <command>")
	fmt.Println("commands:")
	fmt.Println("  ingest --file=./orders.xlsx [--name=...]")
	fmt.Println("  payments:save --file=... --date=YYYY-MM-DD [--sheet=...] [--creator=...]")
	fmt.Println("  reorders:save --file=... --date=YYYY-MM-DD [--sheet=...] [--type=exchange|unsent|other] [--creator=...]")
	fmt.Println("  payments:show --date=YYYY-MM-DD [--kind=payment|reorder]")
	fmt.Println("  payments:range --start=... --end=... [--kind=...]")
	fmt.Println("  payments:dates [--kind=...]")
	fmt.Println("  records:clear --kind=payment|reorder --yes")
	fmt.Println("  clients:list")
	fmt.Println("  sheets:list | sheets:show --stem=... --sheet=... | sheets:clear")
	fmt.Println("  sheets:export --stem=... --sheet=... [--out=...xlsx]")
	fmt.Println("  export:payments --date=... [--kind=...] [--out=...xlsx]")
	fmt.Println("  sweep:aggregates")
	fmt.Println("  mail:fetch [--label=INBOX] [--max=20]")
	fmt.Println("  mail:process [--messageId=...] [--batch=20]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
