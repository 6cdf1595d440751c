// Command report-upload publishes link update reports into the report inbox
// bucket. Each argument is a JSON file holding an array of reports; "-"
// reads from stdin.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"entity-links/models"
	"entity-links/storage"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

type UploadConfig struct {
	Endpoint  string        `envconfig:"REPORTS_S3_URL"`
	Region    string        `envconfig:"REPORTS_S3_REGION" default:"us-east-1"`
	AccessKey string        `envconfig:"REPORTS_S3_KEY" required:"true"`
	SecretKey string        `envconfig:"REPORTS_S3_SECRET" required:"true"`
	Bucket    string        `envconfig:"REPORTS_S3_BUCKET" required:"true"`
	Prefix    string        `envconfig:"REPORTS_S3_PREFIX" default:"link-reports/"`
	Timeout   time.Duration `envconfig:"REPORTS_UPLOAD_TIMEOUT" default:"60s"`
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	if len(os.Args) < 2 {
		logging.Fatal("Usage: report-upload <reports.json>... (use - for stdin)")
	}

	var cfg UploadConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	client, err := storage.NewS3Client(ctx, storage.S3Settings{
		URL:    cfg.Endpoint,
		Region: cfg.Region,
		Key:    cfg.AccessKey,
		Secret: cfg.SecretKey,
	})
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}
	inbox := storage.NewReportInbox(client, cfg.Bucket, cfg.Prefix)

	for _, path := range os.Args[1:] {
		reports, err := readReports(path)
		if err != nil {
			logging.Fatal("Reading reports failed", zap.String("file", path), zap.Error(err))
		}
		key, err := inbox.Publish(ctx, reports)
		if err != nil {
			logging.Fatal("Upload failed", zap.String("file", path), zap.Error(err))
		}
		logging.Info("Reports uploaded",
			zap.String("file", path),
			zap.String("location", fmt.Sprintf("s3://%s/%s", cfg.Bucket, key)),
			zap.Int("reports", len(reports)))
	}
}

func readReports(path string) ([]models.LinkUpdateReport, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return decodeReports(r)
}

// decodeReports parses a JSON array of reports and rejects entries the
// consumer could not route to a tenant and job.
func decodeReports(r io.Reader) ([]models.LinkUpdateReport, error) {
	var reports []models.LinkUpdateReport
	if err := json.NewDecoder(r).Decode(&reports); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}
	if err := models.ValidateReports(reports); err != nil {
		return nil, err
	}
	return reports, nil
}
