package listener

import (
	"context"
	"fmt"
	"time"

	"daybook/internal/config"
	"daybook/internal/intake"
	imapconnector "daybook/internal/intake/imap"
	"daybook/internal/pipeline"
	"daybook/internal/storage"
)

// Service polls the mailbox on an interval, storing new messages and
// running the ingestion pipeline over their workbook attachments.
type Service struct {
	db   *storage.DB
	pipe *pipeline.Service
	cfg  config.Config
}

func NewService(db *storage.DB, pipe *pipeline.Service, cfg config.Config) *Service {
	return &Service{db: db, pipe: pipe, cfg: cfg}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(); err != nil {
			fmt.Printf("intake cycle error: %v\n", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.IntakeIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle() error {
	conn, err := imapconnector.NewConnector(s.cfg)
	if err != nil {
		return err
	}

	fetchService := intake.NewFetchService(s.db, s.cfg.InboxDir, conn)
	fetchResult, err := fetchService.FetchAndStore(s.cfg.IntakeLabel, s.cfg.IntakeFetchMax)
	if err != nil {
		return err
	}

	processor := intake.NewProcessService(s.db, s.pipe, s.cfg.InboxDir)
	messages, sheets, err := processor.ProcessPending(s.cfg.IntakeFetchMax)
	if err != nil {
		return err
	}

	fmt.Printf("intake cycle done fetched=%d stored=%d processed=%d sheets=%d\n",
		fetchResult.Fetched, fetchResult.Stored, messages, sheets)
	return nil
}
