package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/DwayneJengSage/Bridge-Reporter/internal/models"
	appErrors "github.com/DwayneJengSage/Bridge-Reporter/pkg/errors"
)

// ReportGenerator builds one study's report for a request.
type ReportGenerator interface {
	Generate(ctx context.Context, req models.BridgeReporterRequest, study models.Study) (*models.Report, error)
}

type generatorKey struct {
	scheduler    string
	scheduleType models.ReportType
}

// GeneratorRegistry maps (scheduler, schedule type) to a generator. Entries
// registered without a scheduler apply to every scheduler.
type GeneratorRegistry struct {
	mu         sync.RWMutex
	generators map[generatorKey]ReportGenerator
}

func NewGeneratorRegistry() *GeneratorRegistry {
	return &GeneratorRegistry{generators: map[generatorKey]ReportGenerator{}}
}

// NewDefaultGeneratorRegistry wires uploads generation for DAILY and WEEKLY and
// signups generation for DAILY_SIGNUPS.
func NewDefaultGeneratorRegistry(participants participantSource, uploads uploadSource) *GeneratorRegistry {
	registry := NewGeneratorRegistry()
	uploadsGen := NewUploadsReportGenerator(uploads)
	registry.RegisterDefault(models.ReportTypeDaily, uploadsGen)
	registry.RegisterDefault(models.ReportTypeWeekly, uploadsGen)
	registry.RegisterDefault(models.ReportTypeDailySignUps, NewSignUpsReportGenerator(participants))
	return registry
}

// Register binds gen to a specific scheduler and schedule type.
func (r *GeneratorRegistry) Register(scheduler string, scheduleType models.ReportType, gen ReportGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[generatorKey{scheduler: scheduler, scheduleType: scheduleType}] = gen
}

// RegisterDefault binds gen to scheduleType for any scheduler without its own entry.
func (r *GeneratorRegistry) RegisterDefault(scheduleType models.ReportType, gen ReportGenerator) {
	r.Register("", scheduleType, gen)
}

// Lookup prefers a scheduler-specific generator over the default one.
func (r *GeneratorRegistry) Lookup(scheduler string, scheduleType models.ReportType) (ReportGenerator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if gen, ok := r.generators[generatorKey{scheduler: scheduler, scheduleType: scheduleType}]; ok {
		return gen, nil
	}
	if gen, ok := r.generators[generatorKey{scheduleType: scheduleType}]; ok {
		return gen, nil
	}
	return nil, appErrors.Clone(appErrors.ErrParse,
		fmt.Sprintf("no report generator for scheduler %q and schedule type %s", scheduler, scheduleType))
}
