package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"daybook/internal"
	"daybook/internal/cache"
	"daybook/internal/config"
	"daybook/internal/storage"
)

// Service runs the workbook ingestion pipeline: read, normalize,
// classify, recompute aggregates, then cache and persist each sheet.
type Service struct {
	db    *storage.DB
	cache *cache.SheetCache
	cfg   config.Config
}

func NewService(db *storage.DB, sheetCache *cache.SheetCache, cfg config.Config) *Service {
	return &Service{db: db, cache: sheetCache, cfg: cfg}
}

// LoadWorkbook ingests the file at path. displayName overrides the file
// name used for classification and caching when the on-disk name is a
// hash (mailbox intake stores attachments that way).
func (s *Service) LoadWorkbook(path, displayName string) internal.LoadResult {
	if displayName == "" {
		displayName = filepath.Base(path)
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return internal.LoadResult{FilePath: path, Error: fmt.Sprintf("read workbook: %v", err)}
	}
	return s.LoadWorkbookBytes(blob, displayName, path)
}

// LoadWorkbookBytes ingests an in-memory workbook. Failures come back
// in the result's Error field; this never panics on bad uploads.
func (s *Service) LoadWorkbookBytes(blob []byte, filename, sourcePath string) internal.LoadResult {
	rawSheets, total, err := ReadWorkbook(blob, filename)
	if err != nil {
		return internal.LoadResult{FilePath: sourcePath, Error: err.Error()}
	}

	stem := FileStem(filename)
	loadedAt := time.Now().UTC().Format(time.RFC3339)

	sheets := make([]*internal.Sheet, 0, len(rawSheets))
	for _, raw := range rawSheets {
		rows := NormalizeMatrix(raw.Cells)
		sheetType, warnings := Classify(filename, raw.Name)

		sheet := &internal.Sheet{
			Name:     raw.Name,
			Type:     sheetType,
			Rows:     rows,
			RowCount: len(rows),
			ColCount: widest(rows),
			FilePath: sourcePath,
			LoadedAt: loadedAt,
			Warnings: warnings,
		}
		RecomputeAggregates(sheet)

		s.cache.Put(cache.Key(stem, raw.Name), sheet)
		if err := s.db.UpsertSheet(stem, sheet); err != nil {
			return internal.LoadResult{FilePath: sourcePath, Error: fmt.Sprintf("persist sheet %q: %v", raw.Name, err)}
		}
		for _, w := range warnings {
			fmt.Printf("[ingest] warning: %s\n", w)
		}
		sheets = append(sheets, sheet)
	}

	return internal.LoadResult{
		Success:     true,
		Sheets:      sheets,
		TotalSheets: total,
		FilePath:    sourcePath,
	}
}

// CachedSheet looks a sheet up in the LRU first and falls through to
// storage on a miss, repopulating the cache.
func (s *Service) CachedSheet(fileStem, sheetName string) (*internal.Sheet, error) {
	key := cache.Key(fileStem, sheetName)
	if sheet, ok := s.cache.Get(key); ok {
		return sheet, nil
	}
	sheet, err := s.db.GetSheet(fileStem, sheetName)
	if err != nil || sheet == nil {
		return sheet, err
	}
	s.cache.Put(key, sheet)
	return sheet, nil
}

// SweepAggregates recomputes sums and difference flags on every stored
// sheet and rewrites the ones that changed. Returns the changed count.
func (s *Service) SweepAggregates() (int, error) {
	infos, err := s.db.ListSheets()
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, info := range infos {
		sheet, err := s.db.GetSheet(info.FileStem, info.SheetName)
		if err != nil {
			return changed, err
		}
		if sheet == nil {
			continue
		}
		before, _ := json.Marshal(sheet.Rows)
		RecomputeAggregates(sheet)
		after, _ := json.Marshal(sheet.Rows)
		if string(before) == string(after) {
			continue
		}
		if err := s.db.UpsertSheet(info.FileStem, sheet); err != nil {
			return changed, err
		}
		s.cache.Put(cache.Key(info.FileStem, info.SheetName), sheet)
		changed++
	}
	if err := s.db.SetMetadata("lastAggregateSweep", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return changed, err
	}
	return changed, nil
}

// FileStem strips the extension; stored sheets and cache keys are keyed
// by it.
func FileStem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func widest(rows []internal.Row) int {
	max := 0
	for _, row := range rows {
		if len(row) > max {
			max = len(row)
		}
	}
	return max
}
