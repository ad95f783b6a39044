package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"luma/internal"
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
CREATE TABLE IF NOT EXISTS uploads (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  fileName TEXT NOT NULL,
  kind TEXT NOT NULL,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'received',
  rawRef TEXT NOT NULL,
  region TEXT NOT NULL,
  receivedAt TEXT,
  provider TEXT NOT NULL DEFAULT '',
  messageId TEXT NOT NULL DEFAULT '',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(hash),
  UNIQUE(provider, messageId, fileName)
);

CREATE TABLE IF NOT EXISTS usage_records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  uploadId INTEGER NOT NULL,
  supplier TEXT,
  category TEXT NOT NULL,
  scope INTEGER,
  invoiceNumber TEXT,
  issueDate TEXT,
  periodStart TEXT,
  periodEnd TEXT,
  usageValue REAL,
  usageUnit TEXT,
  amountTotal REAL,
  currency TEXT NOT NULL,
  emissionFactor REAL,
  emissionFactorSource TEXT,
  co2eKg REAL,
  confidence REAL NOT NULL,
  status TEXT NOT NULL,
  metaJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(uploadId) REFERENCES uploads(id)
);
CREATE INDEX IF NOT EXISTS idx_usage_records_upload ON usage_records(uploadId);
CREATE INDEX IF NOT EXISTS idx_usage_records_status ON usage_records(status);

CREATE TABLE IF NOT EXISTS emission_factors (
  region TEXT NOT NULL,
  category TEXT NOT NULL,
  scope INTEGER NOT NULL,
  value REAL NOT NULL,
  unit TEXT NOT NULL,
  source TEXT NOT NULL,
  validFrom TEXT NOT NULL,
  validUntil TEXT,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(region, category, scope, validFrom)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  uploadId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(uploadId) REFERENCES uploads(id)
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

const uploadColumns = `id, fileName, kind, hash, status, rawRef, region, receivedAt, provider, messageId`

func (d *DB) UpsertUpload(row internal.UploadRow) (internal.UploadRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO uploads (fileName, kind, hash, status, rawRef, region, receivedAt, provider, messageId)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(hash) DO UPDATE SET
  status=excluded.status,
  rawRef=excluded.rawRef,
  receivedAt=excluded.receivedAt,
  updatedAt=CURRENT_TIMESTAMP
`, row.FileName, row.Kind, row.Hash, row.Status, row.RawRef, row.Region, row.ReceivedAt, row.Provider, row.MessageID)
	if err != nil {
		return internal.UploadRow{}, err
	}

	stored, err := d.GetUploadByHash(row.Hash)
	if err != nil {
		return internal.UploadRow{}, err
	}
	if stored == nil {
		return internal.UploadRow{}, errors.New("failed to upsert upload")
	}
	return *stored, nil
}

func (d *DB) GetUploadByHash(hash string) (*internal.UploadRow, error) {
	return d.getUpload(`SELECT `+uploadColumns+` FROM uploads WHERE hash = ?`, hash)
}

func (d *DB) GetUploadByID(id int) (*internal.UploadRow, error) {
	return d.getUpload(`SELECT `+uploadColumns+` FROM uploads WHERE id = ?`, id)
}

func (d *DB) GetUploadByProviderMessageID(provider, messageID string) (*internal.UploadRow, error) {
	return d.getUpload(`SELECT `+uploadColumns+` FROM uploads WHERE provider = ? AND messageId = ? ORDER BY id ASC`, provider, messageID)
}

func (d *DB) MustUploadByProviderMessageID(provider, messageID string) (internal.UploadRow, error) {
	row, err := d.GetUploadByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.UploadRow{}, err
	}
	if row == nil {
		return internal.UploadRow{}, fmt.Errorf("upload not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

func (d *DB) getUpload(query string, args ...any) (*internal.UploadRow, error) {
	var row internal.UploadRow
	err := d.conn.QueryRow(query, args...).Scan(
		&row.ID, &row.FileName, &row.Kind, &row.Hash, &row.Status, &row.RawRef, &row.Region, &row.ReceivedAt, &row.Provider, &row.MessageID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListUploadsByStatus(status string, limit int) ([]internal.UploadRow, error) {
	rows, err := d.conn.Query(`
SELECT `+uploadColumns+` FROM uploads WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.UploadRow
	for rows.Next() {
		var row internal.UploadRow
		if err := rows.Scan(&row.ID, &row.FileName, &row.Kind, &row.Hash, &row.Status, &row.RawRef, &row.Region, &row.ReceivedAt, &row.Provider, &row.MessageID); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateUploadStatus(uploadID int, status string) error {
	_, err := d.conn.Exec(`UPDATE uploads SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, uploadID)
	return err
}

// ClearUploadRecords removes prior extraction output so reprocessing an
// upload is idempotent.
func (d *DB) ClearUploadRecords(uploadID int) error {
	_, err := d.conn.Exec(`DELETE FROM usage_records WHERE uploadId = ?`, uploadID)
	return err
}

func (d *DB) InsertUsageRecord(uploadID int, record internal.UsageRecord) (int64, error) {
	metaJSON, _ := json.Marshal(record.Meta)
	status := internal.StatusProcessed
	if record.NeedsReview {
		status = internal.StatusNeedsReview
	}

	result, err := d.conn.Exec(`
INSERT INTO usage_records (
  uploadId, supplier, category, scope, invoiceNumber,
  issueDate, periodStart, periodEnd, usageValue, usageUnit,
  amountTotal, currency, emissionFactor, emissionFactorSource, co2eKg,
  confidence, status, metaJson
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, uploadID, record.Supplier, string(record.Category), record.Scope, record.InvoiceNumber,
		timeText(record.IssueDate), timeText(record.PeriodStart), timeText(record.PeriodEnd),
		record.UsageValue, record.UsageUnit,
		record.AmountTotal, record.Currency, record.EmissionFactor, record.EmissionFactorSource, record.CO2eKg,
		record.Confidence, string(status), string(metaJSON))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (d *DB) ListUsageRecords(uploadID int) ([]internal.UsageRecord, error) {
	rows, err := d.conn.Query(`
SELECT supplier, category, scope, invoiceNumber,
       issueDate, periodStart, periodEnd, usageValue, usageUnit,
       amountTotal, currency, emissionFactor, emissionFactorSource, co2eKg,
       confidence, status, metaJson
FROM usage_records WHERE uploadId = ? ORDER BY id ASC
`, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsageRecords(rows)
}

// ListAllUsageRecords returns every stored record in insertion order,
// for the full export.
func (d *DB) ListAllUsageRecords() ([]internal.UsageRecord, error) {
	rows, err := d.conn.Query(`
SELECT supplier, category, scope, invoiceNumber,
       issueDate, periodStart, periodEnd, usageValue, usageUnit,
       amountTotal, currency, emissionFactor, emissionFactorSource, co2eKg,
       confidence, status, metaJson
FROM usage_records ORDER BY id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsageRecords(rows)
}

func scanUsageRecords(rows *sql.Rows) ([]internal.UsageRecord, error) {
	var out []internal.UsageRecord
	for rows.Next() {
		var record internal.UsageRecord
		var category, currency, status, metaJSON string
		var issueDate, periodStart, periodEnd *string
		if err := rows.Scan(
			&record.Supplier, &category, &record.Scope, &record.InvoiceNumber,
			&issueDate, &periodStart, &periodEnd, &record.UsageValue, &record.UsageUnit,
			&record.AmountTotal, &currency, &record.EmissionFactor, &record.EmissionFactorSource, &record.CO2eKg,
			&record.Confidence, &status, &metaJSON,
		); err != nil {
			return nil, err
		}
		record.Category = internal.Category(category)
		record.Currency = currency
		record.NeedsReview = status == string(internal.StatusNeedsReview)
		record.IssueDate = textTime(issueDate)
		record.PeriodStart = textTime(periodStart)
		record.PeriodEnd = textTime(periodEnd)
		_ = json.Unmarshal([]byte(metaJSON), &record.Meta)
		out = append(out, record)
	}
	return out, rows.Err()
}

func (d *DB) UpsertFactors(factors []internal.EmissionFactor) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO emission_factors (region, category, scope, value, unit, source, validFrom, validUntil, lastSeenAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(region, category, scope, validFrom) DO UPDATE SET
  value=excluded.value,
  unit=excluded.unit,
  source=excluded.source,
  validUntil=excluded.validUntil,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range factors {
		if _, err := stmt.Exec(
			f.Region, string(f.Category), f.Scope, f.Value, f.Unit, f.Source,
			f.ValidFrom.Format(time.RFC3339), timeText(f.ValidUntil),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListFactors() ([]internal.EmissionFactor, error) {
	rows, err := d.conn.Query(`
SELECT region, category, scope, value, unit, source, validFrom, validUntil
FROM emission_factors ORDER BY region, category, scope, validFrom
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmissionFactor
	for rows.Next() {
		var f internal.EmissionFactor
		var category, validFrom string
		var validUntil *string
		if err := rows.Scan(&f.Region, &category, &f.Scope, &f.Value, &f.Unit, &f.Source, &validFrom, &validUntil); err != nil {
			return nil, err
		}
		f.Category = internal.Category(category)
		if t, err := time.Parse(time.RFC3339, validFrom); err == nil {
			f.ValidFrom = t
		}
		if until := textTime(validUntil); until != nil {
			f.ValidUntil = until
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (d *DB) InsertRun(traceID string, uploadID int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, uploadId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, uploadID, string(timingsJSON), string(countsJSON))
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

func timeText(v *time.Time) *string {
	if v == nil {
		return nil
	}
	s := v.Format(time.RFC3339)
	return &s
}

func textTime(v *string) *time.Time {
	if v == nil || *v == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, *v); err == nil {
		return &t
	}
	return nil
}
