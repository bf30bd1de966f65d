package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/flower-lookup/internal/classifier"
	"github.com/example/flower-lookup/internal/logging"
	"github.com/example/flower-lookup/internal/metrics"
	"github.com/example/flower-lookup/internal/presentation"
	"github.com/example/flower-lookup/internal/repository"
	"github.com/example/flower-lookup/internal/retry"
	"github.com/example/flower-lookup/internal/wiki"
)

// IdentificationRepository defines the persistence operations needed by the use case.
type IdentificationRepository interface {
	SaveLog(ctx context.Context, log *repository.IdentificationLog) error
	FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*repository.IdentificationLog, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*repository.IdentificationLog, error)
	AggregateByUser(ctx context.Context, userID string) (*repository.Aggregation, error)
}

// Lookuper resolves a label asynchronously, reporting to a delegate.
type Lookuper interface {
	Lookup(ctx context.Context, label string, d wiki.Delegate)
}

// IdentificationUseCase encapsulates the photo -> label -> encyclopedia flow.
type IdentificationUseCase struct {
	repo       IdentificationRepository
	cache      RecordCache
	classifier classifier.Classifier
	lookup     Lookuper
	presenter  *presentation.Presenter
	logger     *zap.Logger
	retry      retry.Policy
}

// Identification is the outcome of one photo identification.
type Identification struct {
	RequestID  string                `json:"request_id"`
	Prediction classifier.Prediction `json:"prediction"`
	View       presentation.View     `json:"view"`
	Cached     bool                  `json:"cached"`
}

// Description is the outcome of a label lookup without classification.
type Description struct {
	Label  string            `json:"label"`
	View   presentation.View `json:"view"`
	Cached bool              `json:"cached"`
}

// NewIdentificationUseCase constructs a new use case instance. cache may be nil.
func NewIdentificationUseCase(repo IdentificationRepository, cache RecordCache, model classifier.Classifier, lookup Lookuper, presenter *presentation.Presenter, logger *zap.Logger) *IdentificationUseCase {
	return &IdentificationUseCase{
		repo:       repo,
		cache:      cache,
		classifier: model,
		lookup:     lookup,
		presenter:  presenter,
		logger:     logger.Named("identification_usecase"),
		retry:      retry.DefaultPolicy,
	}
}

// Identify classifies image, looks the top label up and records the attempt.
// Only classification and persistence failures are returned as errors; a failed lookup
// yields the fallback view.
func (uc *IdentificationUseCase) Identify(ctx context.Context, userID string, image []byte) (*Identification, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.identify", requestID)

	predictions, err := uc.classifier.Classify(ctx, image)
	if err != nil {
		metrics.ObserveClassification("error")
		wrapped := logging.NewOperationError("usecase.classify", requestID, err)
		opLogger.Error("classification failed", zap.Error(wrapped))
		return nil, wrapped
	}
	top, err := classifier.Top(predictions)
	if err != nil {
		metrics.ObserveClassification("empty")
		wrapped := logging.NewOperationError("usecase.classify", requestID, err)
		opLogger.Warn("classifier produced no label", zap.Error(wrapped))
		return nil, wrapped
	}
	metrics.ObserveClassification("ok")
	opLogger.Info("image classified", zap.String("label", top.Label), zap.Float32("confidence", top.Confidence))

	record, cached, lookupErr := uc.resolve(ctx, requestID, top.Label)
	view := uc.render(ctx, record, lookupErr)

	log := &repository.IdentificationLog{
		RequestID:  requestID,
		UserID:     userID,
		Label:      top.Label,
		Confidence: top.Confidence,
		Title:      record.Title,
		ImageURL:   record.ImageURL,
		Success:    lookupErr == nil,
		ErrorKind:  wiki.Kind(lookupErr),
		CreatedAt:  time.Now().UTC(),
	}
	log.Details = fmt.Sprintf("label:%s confidence:%f cached:%t kind:%s", top.Label, top.Confidence, cached, log.ErrorKind)
	if lookupErr != nil {
		log.Details += " error:" + lookupErr.Error()
	}
	if err := uc.repo.SaveLog(ctx, log); err != nil {
		wrapped := logging.NewOperationError("usecase.save_log", requestID, err)
		opLogger.Error("failed to persist identification log", zap.Error(wrapped))
		return nil, wrapped
	}

	return &Identification{
		RequestID:  requestID,
		Prediction: top,
		View:       view,
		Cached:     cached,
	}, nil
}

// Describe looks label up directly. Labels that cannot be encoded are returned as
// errors; every other failure yields the fallback view.
func (uc *IdentificationUseCase) Describe(ctx context.Context, label string) (*Description, error) {
	requestID := uuid.NewString()
	record, cached, err := uc.resolve(ctx, requestID, label)
	if errors.Is(err, wiki.ErrEncoding) {
		return nil, logging.NewOperationError("usecase.describe", requestID, err)
	}
	return &Description{Label: label, View: uc.render(ctx, record, err), Cached: cached}, nil
}

func (uc *IdentificationUseCase) render(ctx context.Context, record wiki.Record, err error) presentation.View {
	if err != nil {
		return uc.presenter.Failure(err)
	}
	return uc.presenter.Success(ctx, record)
}

// resolve serves label from the cache or runs the lookup pipeline and caches the result.
func (uc *IdentificationUseCase) resolve(ctx context.Context, requestID, label string) (wiki.Record, bool, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.resolve", requestID)

	if uc.cache != nil {
		record, err := uc.cachedRecord(ctx, requestID, label)
		switch {
		case err == nil:
			metrics.ObserveCache(true)
			return record, true, nil
		case !errors.Is(err, ErrCacheMiss):
			opLogger.Warn("failed to read lookup cache", zap.Error(err))
		}
		metrics.ObserveCache(false)
	}

	record, err := uc.awaitLookup(ctx, label)
	if err != nil {
		opLogger.Info("lookup failed", zap.String("label", label), zap.String("kind", wiki.Kind(err)), zap.Error(err))
		return wiki.Record{}, false, err
	}

	if uc.cache != nil {
		if err := retry.Do(ctx, uc.logger, uc.retry, "cache.set.lookup", requestID, func() error {
			return uc.cache.Set(ctx, label, record)
		}); err != nil {
			opLogger.Warn("failed to cache lookup result", zap.Error(err))
		}
	}
	return record, false, nil
}

func (uc *IdentificationUseCase) cachedRecord(ctx context.Context, requestID, label string) (wiki.Record, error) {
	var (
		record wiki.Record
		miss   bool
	)
	err := retry.Do(ctx, uc.logger, uc.retry, "cache.get.lookup", requestID, func() error {
		value, err := uc.cache.Get(ctx, label)
		if errors.Is(err, ErrCacheMiss) {
			miss = true
			return nil
		}
		if err != nil {
			return err
		}
		record = value
		return nil
	})
	if err == nil && miss {
		return wiki.Record{}, ErrCacheMiss
	}
	return record, err
}

// awaitLookup hands the pipeline's callback back to the calling goroutine.
func (uc *IdentificationUseCase) awaitLookup(ctx context.Context, label string) (wiki.Record, error) {
	type outcome struct {
		record wiki.Record
		err    error
	}
	done := make(chan outcome, 1)
	uc.lookup.Lookup(ctx, label, wiki.Callbacks{
		Success: func(r wiki.Record) { done <- outcome{record: r} },
		Failure: func(err error) { done <- outcome{err: err} },
	})

	select {
	case o := <-done:
		return o.record, o.err
	case <-ctx.Done():
		return wiki.Record{}, fmt.Errorf("%w: %w", wiki.ErrTransport, ctx.Err())
	}
}

// GetResult retrieves a persisted identification owned by userID.
func (uc *IdentificationUseCase) GetResult(ctx context.Context, userID, requestID string) (*repository.IdentificationLog, error) {
	return uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
}

// ListHistory returns the latest identifications of userID.
func (uc *IdentificationUseCase) ListHistory(ctx context.Context, userID string, limit int) ([]*repository.IdentificationLog, error) {
	switch {
	case limit <= 0:
		limit = 20
	case limit > 100:
		limit = 100
	}
	return uc.repo.ListByUser(ctx, userID, limit)
}
