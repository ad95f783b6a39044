package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"

	"luma/internal"
	"luma/internal/config"
	"luma/internal/storage"
)

type ProcessingService struct {
	db     *storage.DB
	engine *Engine
	cfg    config.Config
}

func NewProcessingService(db *storage.DB, engine *Engine, cfg config.Config) *ProcessingService {
	return &ProcessingService{db: db, engine: engine, cfg: cfg}
}

type ProcessResult struct {
	UploadID  int
	Processed int
	Flagged   int
}

func (s *ProcessingService) ProcessByProviderMessageID(provider, messageID string) (ProcessResult, error) {
	upload, err := s.db.MustUploadByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessUpload(upload)
}

func (s *ProcessingService) ProcessPending(limit int, provider string) (int, int, error) {
	pending, err := s.db.ListUploadsByStatus("received", limit)
	if err != nil {
		return 0, 0, err
	}
	processedUploads := 0
	processedRecords := 0
	for _, upload := range pending {
		if provider != "" && upload.Provider != provider {
			continue
		}
		res, err := s.ProcessUpload(upload)
		if err != nil {
			return processedUploads, processedRecords, err
		}
		processedUploads++
		processedRecords += res.Processed
	}
	return processedUploads, processedRecords, nil
}

// ProcessUpload runs the extraction pipeline over one stored source
// file and persists the resulting records. Reprocessing replaces the
// upload's previous records.
func (s *ProcessingService) ProcessUpload(upload internal.UploadRow) (ProcessResult, error) {
	start := time.Now()
	region := upload.Region
	if region == "" {
		region = s.cfg.CompanyRegion
	}

	if err := s.db.ClearUploadRecords(upload.ID); err != nil {
		return ProcessResult{}, err
	}

	var records []internal.UsageRecord
	var err error
	if internal.SourceKind(upload.Kind) == internal.SourceEmail {
		records, err = s.extractEmail(upload, region)
	} else {
		records, _, err = s.engine.ExtractAll(upload.RawRef, region)
	}
	if err != nil {
		_ = s.db.UpdateUploadStatus(upload.ID, "failed")
		return ProcessResult{}, err
	}
	if records == nil {
		// invoice detection rejected the email
		_ = s.db.UpdateUploadStatus(upload.ID, "skipped")
		_ = s.insertRun(upload.ID, start, 0, 0)
		return ProcessResult{UploadID: upload.ID}, nil
	}

	flagged := 0
	for _, record := range records {
		if _, err := s.db.InsertUsageRecord(upload.ID, record); err != nil {
			return ProcessResult{}, err
		}
		if record.NeedsReview {
			flagged++
		}
	}

	if err := s.db.UpdateUploadStatus(upload.ID, "processed"); err != nil {
		return ProcessResult{}, err
	}
	_ = s.insertRun(upload.ID, start, len(records), flagged)

	return ProcessResult{UploadID: upload.ID, Processed: len(records), Flagged: flagged}, nil
}

// extractEmail unpacks an .eml upload and runs each invoice-bearing
// attachment through the pipeline. Returns nil records when detection
// decides the email carries no invoice.
func (s *ProcessingService) extractEmail(upload internal.UploadRow, region string) ([]internal.UsageRecord, error) {
	raw, err := os.ReadFile(upload.RawRef)
	if err != nil {
		return nil, err
	}
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, internal.UnsupportedFormatf("eml %s: %v", upload.FileName, err)
	}

	attachmentNames := make([]string, 0, len(env.Attachments))
	for _, att := range env.Attachments {
		attachmentNames = append(attachmentNames, att.FileName)
	}
	detect := DetectInvoiceEmail(env.GetHeader("Subject"), env.Text, env.HTML, attachmentNames)
	if !detect.IsInvoice {
		return nil, nil
	}

	var records []internal.UsageRecord
	for _, att := range env.Attachments {
		name := strings.TrimSpace(att.FileName)
		kind, ok := internal.KindForFilename(name)
		if !ok || kind == internal.SourceEmail {
			continue
		}
		extra, err := s.extractAttachment(name, kind, att.Content, region)
		if err != nil {
			// a broken attachment degrades, the rest still processes
			records = append(records, attachmentGapRecord(kind, name, err))
			continue
		}
		for i := range extra {
			extra[i].Meta[internal.MetaAttachment] = name
		}
		records = append(records, extra...)
	}

	// No usable attachments: fall back to the HTML body.
	if len(records) == 0 && env.HTML != "" {
		extra, err := s.extractAttachment("body.html", internal.SourceHTML, []byte(env.HTML), region)
		if err == nil {
			records = append(records, extra...)
		}
	}

	if records == nil {
		records = []internal.UsageRecord{}
	}
	return records, nil
}

func (s *ProcessingService) extractAttachment(name string, kind internal.SourceKind, content []byte, region string) ([]internal.UsageRecord, error) {
	tmp, err := os.CreateTemp("", "luma-att-*"+filepath.Ext(name))
	if err != nil {
		return nil, err
	}
	path := tmp.Name()
	defer os.Remove(path)
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	records, _, err := s.engineExtractAllKind(path, kind, region)
	return records, err
}

func (s *ProcessingService) engineExtractAllKind(path string, kind internal.SourceKind, region string) ([]internal.UsageRecord, Summary, error) {
	seq, err := s.engine.ExtractKind(path, kind, region)
	if err != nil {
		return nil, Summary{}, err
	}
	var records []internal.UsageRecord
	var summary Summary
	for record := range seq {
		records = append(records, record)
		summary.Records++
		if record.NeedsReview {
			summary.Flagged++
		}
	}
	return records, summary, nil
}

func attachmentGapRecord(kind internal.SourceKind, name string, err error) internal.UsageRecord {
	record := gapRecord(internal.RawUnit{Kind: kind}, err.Error())
	record.Meta[internal.MetaAttachment] = name
	return record
}

func (s *ProcessingService) insertRun(uploadID int, start time.Time, records, flagged int) error {
	return s.db.InsertRun(traceID(), uploadID,
		map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		map[string]int{"records": records, "flagged": flagged})
}

func traceID() string {
	return uuid.NewString()
}
