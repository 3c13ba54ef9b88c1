package intake

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"

	"daybook/internal"
	"daybook/internal/pipeline"
	"daybook/internal/storage"
)

// MailConnector pulls unread messages from a mailbox label.
type MailConnector interface {
	FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error)
}

// FetchService pulls messages and stores the raw mail on disk plus an
// intake row per message, content-addressed by sha256.
type FetchService struct {
	db        *storage.DB
	connector MailConnector
	inboxDir  string
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, inboxDir string, connector MailConnector) *FetchService {
	return &FetchService{db: db, connector: connector, inboxDir: inboxDir}
}

func (s *FetchService) FetchAndStore(label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(label, max)
	if err != nil {
		return FetchResult{}, err
	}

	stored := 0
	for _, msg := range messages {
		if _, err := s.store(msg); err != nil {
			return FetchResult{}, err
		}
		stored++
	}
	return FetchResult{Fetched: len(messages), Stored: stored}, nil
}

func (s *FetchService) store(msg internal.FetchedMailMessage) (internal.IntakeRow, error) {
	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.inboxDir, 0o755); err != nil {
		return internal.IntakeRow{}, err
	}

	rawPath := filepath.Join(s.inboxDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.IntakeRow{}, err
		}
	}

	return s.db.UpsertIntake(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, "fetched")
}

// ProcessService runs the ingestion pipeline over workbook attachments
// of fetched mail.
type ProcessService struct {
	db       *storage.DB
	pipe     *pipeline.Service
	inboxDir string
}

func NewProcessService(db *storage.DB, pipe *pipeline.Service, inboxDir string) *ProcessService {
	return &ProcessService{db: db, pipe: pipe, inboxDir: inboxDir}
}

type ProcessResult struct {
	IntakeID  int
	Workbooks int
	Sheets    int
}

// ProcessPending walks intake rows in fetched state and ingests every
// workbook attachment. A message without workbook attachments is marked
// skipped; a reader failure marks the message failed and moves on.
func (s *ProcessService) ProcessPending(limit int) (int, int, error) {
	pending, err := s.db.ListIntakeByStatus("fetched", limit)
	if err != nil {
		return 0, 0, err
	}

	processed := 0
	sheets := 0
	for _, row := range pending {
		res, err := s.Process(row)
		if err != nil {
			fmt.Printf("[intake] message %s failed: %v\n", row.MessageID, err)
			_ = s.db.UpdateIntakeStatus(row.ID, "failed")
			continue
		}
		processed++
		sheets += res.Sheets
	}
	return processed, sheets, nil
}

// ProcessByProviderMessageID reprocesses one stored message regardless
// of its current status.
func (s *ProcessService) ProcessByProviderMessageID(provider, messageID string) (ProcessResult, error) {
	row, err := s.db.MustIntakeByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.Process(row)
}

func (s *ProcessService) Process(row internal.IntakeRow) (ProcessResult, error) {
	raw, err := os.ReadFile(row.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return ProcessResult{}, err
	}

	result := ProcessResult{IntakeID: row.ID}
	for _, att := range env.Attachments {
		if !isWorkbookName(att.FileName) {
			continue
		}
		load := s.pipe.LoadWorkbookBytes(att.Content, att.FileName, row.RawRef)
		if !load.Success {
			return result, fmt.Errorf("attachment %q: %s", att.FileName, load.Error)
		}
		result.Workbooks++
		result.Sheets += len(load.Sheets)
	}

	status := "processed"
	if result.Workbooks == 0 {
		status = "skipped"
	}
	if err := s.db.UpdateIntakeStatus(row.ID, status); err != nil {
		return result, err
	}
	return result, nil
}

func isWorkbookName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xls", ".xlsx":
		return true
	}
	return false
}
