package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/face-identify/internal/logging"
)

// ErrNotFound is returned when no recognition log matches.
var ErrNotFound = errors.New("recognition log not found")

// RecognitionLog records the outcome of one identification request.
type RecognitionLog struct {
	ID           uint      `gorm:"primaryKey"`
	RequestID    string    `gorm:"column:request_id;uniqueIndex;size:64"`
	GroupID      string    `gorm:"column:group_id;size:64"`
	FaceCount    int       `gorm:"column:face_count"`
	MatchedCount int       `gorm:"column:matched_count"`
	Result       string    `gorm:"column:result;type:text"`
	LatencyMs    int64     `gorm:"column:latency_ms"`
	CreatedAt    time.Time `gorm:"column:created_at;index"`
}

// TableName overrides the default table name.
func (RecognitionLog) TableName() string {
	return "recognition_logs"
}

// MetricsAggregation holds raw counters over all recognition logs.
type MetricsAggregation struct {
	TotalCount       int64
	TotalFaces       int64
	TotalMatched     int64
	AverageLatencyMs float64
}

// RecognitionRepository provides persistence APIs for recognition logs.
type RecognitionRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewRecognitionRepository creates a new repository instance.
func NewRecognitionRepository(db *gorm.DB, logger *zap.Logger) *RecognitionRepository {
	return &RecognitionRepository{
		db:             db,
		logger:         logger.Named("recognition_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *RecognitionRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&RecognitionLog{})
}

// SaveLog persists a recognition log entry.
func (r *RecognitionRepository) SaveLog(ctx context.Context, log *RecognitionLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestID retrieves the log of one request.
func (r *RecognitionRepository) FindByRequestID(ctx context.Context, requestID string) (*RecognitionLog, error) {
	var log RecognitionLog
	err := r.db.WithContext(ctx).First(&log, "request_id = ?", requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, logging.NewOperationError("repository.find_by_request_id", requestID, err)
	}
	return &log, nil
}

// AggregateMetrics sums counters across all logs.
func (r *RecognitionRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var row struct {
		TotalCount       int64
		TotalFaces       int64
		TotalMatched     int64
		AverageLatencyMs float64
	}
	err := r.db.WithContext(ctx).
		Model(&RecognitionLog{}).
		Select("COUNT(*) AS total_count, COALESCE(SUM(face_count), 0) AS total_faces, " +
			"COALESCE(SUM(matched_count), 0) AS total_matched, COALESCE(AVG(latency_ms), 0) AS average_latency_ms").
		Scan(&row).Error
	if err != nil {
		return nil, logging.NewOperationError("repository.aggregate_metrics", "", err)
	}
	return &MetricsAggregation{
		TotalCount:       row.TotalCount,
		TotalFaces:       row.TotalFaces,
		TotalMatched:     row.TotalMatched,
		AverageLatencyMs: row.AverageLatencyMs,
	}, nil
}

func (r *RecognitionRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	attempts := r.retryAttempts
	if attempts < 1 {
		attempts = 1
	}
	opLogger := logging.WithOperation(r.logger, operation, requestID)
	backoff := r.initialBackoff

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}
		if !logging.IsTransient(err) || attempt == attempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}
		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}
