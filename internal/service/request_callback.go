package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DwayneJengSage/Bridge-Reporter/internal/dto"
	"github.com/DwayneJengSage/Bridge-Reporter/internal/models"
	appErrors "github.com/DwayneJengSage/Bridge-Reporter/pkg/errors"
)

const defaultStudyConcurrency = 4

type studyResolver interface {
	Resolve(ctx context.Context, req models.BridgeReporterRequest) ([]models.Study, error)
}

type reportPublisher interface {
	Publish(ctx context.Context, report *models.Report) error
}

// RequestCallbackConfig bundles the callback's collaborators.
type RequestCallbackConfig struct {
	Registry         *GeneratorRegistry
	Studies          studyResolver
	Publisher        reportPublisher
	Metrics          *MetricsService
	Validator        *validator.Validate
	StudyConcurrency int
	Logger           *zap.Logger
}

// RequestCallback turns one queue message body into one report per study.
type RequestCallback struct {
	registry    *GeneratorRegistry
	studies     studyResolver
	publisher   reportPublisher
	metrics     *MetricsService
	validate    *validator.Validate
	concurrency int
	logger      *zap.Logger
}

// NewRequestCallback constructs the callback.
func NewRequestCallback(cfg RequestCallbackConfig) *RequestCallback {
	if cfg.Validator == nil {
		cfg.Validator = dto.NewValidator()
	}
	if cfg.StudyConcurrency <= 0 {
		cfg.StudyConcurrency = defaultStudyConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &RequestCallback{
		registry:    cfg.Registry,
		studies:     cfg.Studies,
		publisher:   cfg.Publisher,
		metrics:     cfg.Metrics,
		validate:    cfg.Validator,
		concurrency: cfg.StudyConcurrency,
		logger:      cfg.Logger,
	}
}

// Parse decodes and validates a message body. Every failure is ErrParse.
func (c *RequestCallback) Parse(body []byte) (models.BridgeReporterRequest, error) {
	var msg dto.ReportRequestMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return models.BridgeReporterRequest{}, appErrors.Wrap(err, appErrors.ErrParse, "decode report request")
	}
	if err := msg.Validate(c.validate); err != nil {
		return models.BridgeReporterRequest{}, err
	}
	return msg.ToRequest()
}

// OnReceive processes one message body. A nil return means every study's report
// was published. Studies are processed independently; one failure does not stop
// the others, and the returned error aggregates all of them.
func (c *RequestCallback) OnReceive(ctx context.Context, body []byte) error {
	req, err := c.Parse(body)
	if err != nil {
		return err
	}

	generator, err := c.registry.Lookup(req.Scheduler, req.ScheduleType)
	if err != nil {
		return err
	}

	studies, err := c.studies.Resolve(ctx, req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrDataAccess, "resolve studies")
	}

	logger := c.logger.With(
		zap.String("scheduler", req.Scheduler),
		zap.String("schedule_type", req.ScheduleType.String()),
		zap.Time("start", req.StartDateTime),
		zap.Time("end", req.EndDateTime),
		zap.String("report_id", req.ReportID()),
	)
	logger.Info("processing report request", zap.Int("studies", len(studies)))

	var (
		mu     sync.Mutex
		result *multierror.Error
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.concurrency)
	for _, study := range studies {
		study := study
		group.Go(func() error {
			if err := c.processStudy(groupCtx, generator, req, study); err != nil {
				logger.Error("study report failed", zap.String("study_id", study.Identifier), zap.Error(err))
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("study %s: %w", study.Identifier, err))
				mu.Unlock()
			}
			// Siblings keep running; failures are collected, not propagated.
			return nil
		})
	}
	_ = group.Wait()

	if err := result.ErrorOrNil(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrGeneration,
			fmt.Sprintf("%d of %d studies failed for %s", len(result.Errors), len(studies), req.ReportID()))
	}
	logger.Info("report request complete", zap.Int("studies", len(studies)))
	return nil
}

func (c *RequestCallback) processStudy(ctx context.Context, generator ReportGenerator, req models.BridgeReporterRequest, study models.Study) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("panic generating report: %v", r))
		}
		c.metrics.ObserveReport(req.ScheduleType.String(), err, time.Since(start))
	}()

	report, err := generator.Generate(ctx, req, study)
	if err != nil {
		return err
	}
	return c.publisher.Publish(ctx, report)
}
