package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/face-identify/internal/faceapi"
	"github.com/example/face-identify/internal/logging"
	"github.com/example/face-identify/internal/pipeline"
	"github.com/example/face-identify/internal/repository"
)

// ErrHistoryDisabled is returned by lookups when no recognition log is configured.
var ErrHistoryDisabled = errors.New("recognition history is disabled")

// RecognitionRepository defines the persistence operations needed by the use case.
type RecognitionRepository interface {
	SaveLog(ctx context.Context, log *repository.RecognitionLog) error
	FindByRequestID(ctx context.Context, requestID string) (*repository.RecognitionLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// Detector finds faces in an image.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]faceapi.DetectedFace, error)
}

// Runner identifies detected faces.
type Runner interface {
	Run(ctx context.Context, requestID string, faces []faceapi.DetectedFace, groupID string) (*pipeline.Report, error)
}

// IdentificationUseCase runs one upload through detection and identification.
type IdentificationUseCase struct {
	detector Detector
	runner   Runner
	repo     RecognitionRepository
	groupID  string
	logger   *zap.Logger
}

// NewIdentificationUseCase constructs a new use case instance. repo may be nil
// to disable the recognition log.
func NewIdentificationUseCase(detector Detector, runner Runner, repo RecognitionRepository, groupID string, logger *zap.Logger) *IdentificationUseCase {
	return &IdentificationUseCase{
		detector: detector,
		runner:   runner,
		repo:     repo,
		groupID:  groupID,
		logger:   logger.Named("identification_usecase"),
	}
}

// IdentifyImage detects faces in image and resolves the known people among
// them. It returns the generated request ID with the report.
func (uc *IdentificationUseCase) IdentifyImage(ctx context.Context, image []byte) (string, *pipeline.Report, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.identify_image", requestID)
	started := time.Now()

	faces, err := uc.detector.Detect(ctx, image)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.detect", requestID, err)
		opLogger.Error("face detection failed", zap.Error(wrapped))
		return requestID, nil, wrapped
	}

	report, err := uc.runner.Run(ctx, requestID, faces, uc.groupID)
	if err != nil {
		opLogger.Error("identification failed", zap.Error(err), zap.Int("faces", len(faces)))
		return requestID, nil, err
	}

	elapsed := time.Since(started)
	opLogger.Info("identification finished",
		zap.Int("faces", report.Faces),
		zap.Int("matches", len(report.Matches)),
		zap.Int("unresolved", report.Unresolved),
		zap.Duration("elapsed", elapsed),
	)

	uc.record(ctx, requestID, report, elapsed, opLogger)
	return requestID, report, nil
}

// record writes the recognition log. Failures are logged and never fail the request.
func (uc *IdentificationUseCase) record(ctx context.Context, requestID string, report *pipeline.Report, elapsed time.Duration, opLogger *zap.Logger) {
	if uc.repo == nil {
		return
	}
	result, err := json.Marshal(report.Matches)
	if err != nil {
		opLogger.Warn("failed to serialize matches", zap.Error(err))
		return
	}
	log := &repository.RecognitionLog{
		RequestID:    requestID,
		GroupID:      uc.groupID,
		FaceCount:    report.Faces,
		MatchedCount: len(report.Matches),
		Result:       string(result),
		LatencyMs:    elapsed.Milliseconds(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := uc.repo.SaveLog(ctx, log); err != nil {
		opLogger.Warn("failed to persist recognition log", zap.Error(err))
	}
}

// GetResult loads the recognition log of a past request.
func (uc *IdentificationUseCase) GetResult(ctx context.Context, requestID string) (*repository.RecognitionLog, error) {
	if uc.repo == nil {
		return nil, ErrHistoryDisabled
	}
	return uc.repo.FindByRequestID(ctx, requestID)
}
