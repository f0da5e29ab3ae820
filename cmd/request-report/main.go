// Command request-report enqueues one report request for the reporter worker,
// or with -show prints what the archive holds for that request.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	awssqs "github.com/aws/aws-sdk-go/service/sqs"
	"go.uber.org/zap"

	"github.com/DwayneJengSage/Bridge-Reporter/internal/dto"
	"github.com/DwayneJengSage/Bridge-Reporter/internal/models"
	"github.com/DwayneJengSage/Bridge-Reporter/internal/repository"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/config"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/database"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/logger"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/sqs"
)

const sendTimeout = 30 * time.Second

type options struct {
	configPath string
	scheduler  string
	schedule   string
	start      string
	end        string
	studies    string
	dryRun     bool
	show       bool
}

type archiveReader interface {
	Get(ctx context.Context, studyID, reportID string, date civil.Date) (*models.Report, error)
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to the properties file")
	flag.StringVar(&opts.scheduler, "scheduler", "bridge-reporter", "scheduler name; prefixes the report id")
	flag.StringVar(&opts.schedule, "type", "DAILY", "schedule type: DAILY, WEEKLY or DAILY_SIGNUPS")
	flag.StringVar(&opts.start, "start", "", "window start, RFC3339")
	flag.StringVar(&opts.end, "end", "", "window end, RFC3339")
	flag.StringVar(&opts.studies, "studies", "", "comma separated study whitelist; empty means every study")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "print the message instead of sending it")
	flag.BoolVar(&opts.show, "show", false, "print the archived reports for -studies instead of sending a request")
	flag.Parse()

	msg, req, err := buildRequest(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}
	if opts.show {
		if err := show(opts.configPath, req); err != nil {
			log.Fatalf("show archived reports: %v", err)
		}
		return
	}
	body, err := json.Marshal(msg)
	if err != nil {
		log.Fatalf("marshal report request: %v", err)
	}
	if opts.dryRun {
		fmt.Println(string(body))
		return
	}

	cfg, err := config.Read(opts.configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Queue.URL == "" {
		log.Fatal("reporter.request.sqs.queue.url must be provided")
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	sess, err := sqs.NewSession(cfg.Queue.Region)
	if err != nil {
		logr.Fatal("aws session", zap.Error(err))
	}
	queue := sqs.NewHelper(awssqs.New(sess), cfg.Queue)

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	id, err := queue.Send(ctx, string(body))
	if err != nil {
		logr.Fatal("send report request", zap.Error(err))
	}
	logr.Info("report request enqueued", zap.String("message_id", id), zap.String("queue", cfg.Queue.URL))
}

// buildMessage renders opts as a queue message body, rejecting anything the worker would.
func buildMessage(opts options) ([]byte, error) {
	msg, _, err := buildRequest(opts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

func buildRequest(opts options) (dto.ReportRequestMessage, models.BridgeReporterRequest, error) {
	var msg dto.ReportRequestMessage
	start, err := time.Parse(time.RFC3339, opts.start)
	if err != nil {
		return msg, models.BridgeReporterRequest{}, fmt.Errorf("invalid -start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, opts.end)
	if err != nil {
		return msg, models.BridgeReporterRequest{}, fmt.Errorf("invalid -end: %w", err)
	}

	msg = dto.ReportRequestMessage{
		Scheduler:     opts.scheduler,
		ScheduleType:  opts.schedule,
		StartDateTime: &start,
		EndDateTime:   &end,
	}
	if opts.studies != "" {
		for _, id := range strings.Split(opts.studies, ",") {
			msg.StudyWhitelist = append(msg.StudyWhitelist, strings.TrimSpace(id))
		}
	}

	if err := msg.Validate(dto.NewValidator()); err != nil {
		return msg, models.BridgeReporterRequest{}, err
	}
	req, err := msg.ToRequest()
	if err != nil {
		return msg, models.BridgeReporterRequest{}, err
	}
	return msg, req, nil
}

func show(configPath string, req models.BridgeReporterRequest) error {
	cfg, err := config.Read(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return writeArchived(ctx, repository.NewReportRepository(db), req, os.Stdout)
}

// writeArchived prints, one JSON document per study, the reports stored for req.
func writeArchived(ctx context.Context, archive archiveReader, req models.BridgeReporterRequest, w io.Writer) error {
	if len(req.StudyWhitelist) == 0 {
		return errors.New("-show needs at least one study in -studies")
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	date := models.ReportDate(req.StartDateTime)
	for _, studyID := range req.StudyWhitelist {
		report, err := archive.Get(ctx, studyID, req.ReportID(), date)
		if err != nil {
			return fmt.Errorf("study %s: %w", studyID, err)
		}
		if err := enc.Encode(report); err != nil {
			return err
		}
	}
	return nil
}
