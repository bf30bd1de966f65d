package usecase

import "context"

// Summary represents aggregated identification insights for a user.
type Summary struct {
	TotalRequests     int64   `json:"total_requests"`
	FoundRequests     int64   `json:"found_requests"`
	FoundRate         float64 `json:"found_rate"`
	AverageConfidence float64 `json:"average_confidence"`
}

// GetSummary aggregates identification history from persisted logs.
func (uc *IdentificationUseCase) GetSummary(ctx context.Context, userID string) (*Summary, error) {
	aggregation, err := uc.repo.AggregateByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		TotalRequests:     aggregation.TotalCount,
		FoundRequests:     aggregation.SuccessCount,
		AverageConfidence: aggregation.AverageConfidence,
	}

	if aggregation.TotalCount > 0 {
		summary.FoundRate = float64(aggregation.SuccessCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
