package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"luma/internal/config"
	"luma/internal/connectors"
	gmailconnector "luma/internal/connectors/gmail"
	imapconnector "luma/internal/connectors/imap"
	"luma/internal/factors"
	"luma/internal/pipeline"
	"luma/internal/storage"
)

// Service polls a mailbox for invoice emails: fetch, store, run the
// extraction pipeline, and optionally export the resulting records.
type Service struct {
	db  *storage.DB
	cfg config.Config
}

func NewService(db *storage.DB, cfg config.Config) (*Service, error) {
	return &Service{db: db, cfg: cfg}, nil
}

// newEngine rebuilds the pipeline engine from the current factor set so
// registry syncs landed between cycles take effect without a restart.
func (s *Service) newEngine() (*pipeline.Engine, error) {
	table, err := factors.LoadTable(s.db)
	if err != nil {
		return nil, err
	}
	return pipeline.NewEngine(s.cfg, table), nil
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(); err != nil {
			fmt.Printf("listener cycle error: %v\n", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.MailListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle() error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector, err := s.makeConnector(provider)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return err
	}

	engine, err := s.newEngine()
	if err != nil {
		return err
	}
	processor := pipeline.NewProcessingService(s.db, engine, s.cfg)
	processedUploads, processedRecords, err := processor.ProcessPending(s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return err
	}

	if s.cfg.MailListenerAutoExport {
		if err := s.exportProcessed(provider); err != nil {
			return err
		}
	}

	fmt.Printf("listener cycle done provider=%s fetched=%d stored=%d uploads=%d records=%d\n",
		provider, fetchResult.Fetched, fetchResult.Stored, processedUploads, processedRecords)
	return nil
}

func (s *Service) exportProcessed(provider string) error {
	uploads, err := s.db.ListUploadsByStatus("processed", 200)
	if err != nil {
		return err
	}

	for _, upload := range uploads {
		if upload.Provider != provider {
			continue
		}
		records, err := s.db.ListUsageRecords(upload.ID)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			_ = s.db.UpdateUploadStatus(upload.ID, "exported")
			continue
		}
		filename := fmt.Sprintf("%d_%s.xlsx", upload.ID, sanitizeMessageID(upload.MessageID))
		outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
		if err := pipeline.ExportRecordsToXLSX(records, outputPath); err != nil {
			return err
		}
		_ = s.db.UpdateUploadStatus(upload.ID, "exported")
	}
	return nil
}

func (s *Service) makeConnector(provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}

func sanitizeMessageID(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
