package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/flower-lookup/internal/retry"
)

// IdentificationLog represents one persisted identification request.
type IdentificationLog struct {
	ID         uint      `gorm:"primaryKey"`
	RequestID  string    `gorm:"column:request_id;uniqueIndex;size:64"`
	UserID     string    `gorm:"column:user_id;index;size:64"`
	Label      string    `gorm:"column:label;size:255"`
	Confidence float32   `gorm:"column:confidence"`
	Title      string    `gorm:"column:title;size:255"`
	ImageURL   string    `gorm:"column:image_url;type:text"`
	Success    bool      `gorm:"column:success"`
	ErrorKind  string    `gorm:"column:error_kind;size:32"`
	Details    string    `gorm:"column:details;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (IdentificationLog) TableName() string {
	return "identification_logs"
}

// IdentificationRepository provides persistence APIs for identification logs.
type IdentificationRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewIdentificationRepository creates a new repository instance.
func NewIdentificationRepository(db *gorm.DB, logger *zap.Logger) *IdentificationRepository {
	return &IdentificationRepository{
		db:             db,
		logger:         logger.Named("identification_repository"),
		retryAttempts:  retry.DefaultPolicy.Attempts,
		initialBackoff: retry.DefaultPolicy.InitialBackoff,
		maxBackoff:     retry.DefaultPolicy.MaxBackoff,
	}
}

// AutoMigrate ensures the schema is available.
func (r *IdentificationRepository) AutoMigrate(ctx context.Context) error {
	return r.executeWithRetry(ctx, "repository.auto_migrate", "", func() error {
		return r.db.WithContext(ctx).AutoMigrate(&IdentificationLog{})
	})
}

// SaveLog persists an identification log entry.
func (r *IdentificationRepository) SaveLog(ctx context.Context, log *IdentificationLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestIDAndUser retrieves an identification log matching the request and owner.
func (r *IdentificationRepository) FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*IdentificationLog, error) {
	var log IdentificationLog
	err := r.executeWithRetry(ctx, "repository.find_by_request", requestID, func() error {
		return r.db.WithContext(ctx).First(&log, "request_id = ? AND user_id = ?", requestID, userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// ListByUser returns the most recent identifications of a user, newest first.
func (r *IdentificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*IdentificationLog, error) {
	var logs []*IdentificationLog
	err := r.executeWithRetry(ctx, "repository.list_by_user", "", func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ?", userID).
			Order("created_at DESC").
			Limit(limit).
			Find(&logs).Error
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *IdentificationRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	policy := retry.Policy{
		Attempts:       r.retryAttempts,
		InitialBackoff: r.initialBackoff,
		MaxBackoff:     r.maxBackoff,
	}
	return retry.Do(ctx, r.logger, policy, operation, requestID, fn)
}

// Aggregation summarises the identifications of a user.
type Aggregation struct {
	TotalCount        int64
	SuccessCount      int64
	AverageConfidence float64
}

// AggregateByUser computes counts and mean classifier confidence for a user.
func (r *IdentificationRepository) AggregateByUser(ctx context.Context, userID string) (*Aggregation, error) {
	var agg Aggregation
	err := r.executeWithRetry(ctx, "repository.aggregate_by_user", "", func() error {
		return r.db.WithContext(ctx).
			Model(&IdentificationLog{}).
			Select("COUNT(*) AS total_count, " +
				"COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS success_count, " +
				"COALESCE(AVG(confidence), 0) AS average_confidence").
			Where("user_id = ?", userID).
			Scan(&agg).Error
	})
	if err != nil {
		return nil, err
	}
	return &agg, nil
}
