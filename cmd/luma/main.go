package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"luma/internal"
	"luma/internal/config"
	"luma/internal/connectors"
	gmailconnector "luma/internal/connectors/gmail"
	imapconnector "luma/internal/connectors/imap"
	"luma/internal/factors"
	"luma/internal/listener"
	"luma/internal/pipeline"
	"luma/internal/storage"
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

	cmd := os.Args[1]
	switch cmd {
	case "factors:seed":
		seed := factors.Seed()
		must(db.UpsertFactors(seed))
		fmt.Printf("seeded %d emission factors\n", len(seed))
	case "factors:initial-sync":
		svc := factors.NewSyncService(db, cfg)
		count, err := svc.InitialSync(context.Background())
		must(err)
		fmt.Printf("initial sync complete: %d factors\n", count)
	case "factors:incremental-sync":
		svc := factors.NewSyncService(db, cfg)
		count, err := svc.IncrementalSync(context.Background())
		must(err)
		fmt.Printf("incremental sync complete: %d factors\n", count)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewProcessingService(db, newEngine(cfg, db), cfg)
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(*provider, *messageID)
			must(err)
			fmt.Printf("processed upload id=%d records=%d flagged=%d\n", res.UploadID, res.Processed, res.Flagged)
			return
		}
		processedUploads, processedRecords, err := processor.ProcessPending(*batch, *provider)
		must(err)
		fmt.Printf("processed pending uploads=%d records=%d\n", processedUploads, processedRecords)
	case "mail:listen":
		s, err := listener.NewService(db, cfg)
		must(err)
		must(s.Run(context.Background()))
	case "extract":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "invoice file path (pdf|csv|xlsx|image|html|txt)")
		region := fs.String("region", cfg.CompanyRegion, "company region for factor lookup")
		output := fs.String("output", "", "optional output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}

		engine := newEngine(cfg, db)
		records, summary, err := engine.ExtractAll(*input, *region)
		must(err)
		fmt.Printf("extract done records=%d flagged=%d\n", summary.Records, summary.Flagged)
		if strings.TrimSpace(*output) != "" {
			must(pipeline.ExportRecordsToXLSX(records, *output))
			fmt.Printf("wrote %s\n", *output)
		}
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		uploadID := fs.Int("uploadId", 0, "internal upload id, 0 exports everything")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		records, err := listRecords(db, *uploadID)
		must(err)
		if len(records) == 0 {
			must(fmt.Errorf("no records to export"))
		}
		must(pipeline.ExportRecordsToXLSX(records, *out))
		fmt.Printf("exported %d records to %s\n", len(records), *out)
	default:
		usage()
		os.Exit(1)
	}
}

func listRecords(db *storage.DB, uploadID int) ([]internal.UsageRecord, error) {
	if uploadID > 0 {
		return db.ListUsageRecords(uploadID)
	}
	return db.ListAllUsageRecords()
}

func newEngine(cfg config.Config, db *storage.DB) *pipeline.Engine {
	table, err := factors.LoadTable(db)
	must(err)
	return pipeline.NewEngine(cfg, table)
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: luma <command>")
	fmt.Println("commands:")
	fmt.Println("  factors:seed")
	fmt.Println("  factors:initial-sync")
	fmt.Println("  factors:incremental-sync")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  extract --input=factura.pdf [--region=ES] [--output=./out/records.xlsx]")
	fmt.Println("  export:xlsx [--uploadId=1] --out=./out/records.xlsx")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
