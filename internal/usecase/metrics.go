package usecase

import "context"

// MetricsSummary represents aggregated identification insights.
type MetricsSummary struct {
	TotalRequests    int64   `json:"total_requests"`
	TotalFaces       int64   `json:"total_faces"`
	MatchedFaces     int64   `json:"matched_faces"`
	MatchRate        float64 `json:"match_rate"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
}

// GetMetricsSummary aggregates identification metrics from persisted logs.
func (uc *IdentificationUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	if uc.repo == nil {
		return nil, ErrHistoryDisabled
	}
	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:    aggregation.TotalCount,
		TotalFaces:       aggregation.TotalFaces,
		MatchedFaces:     aggregation.TotalMatched,
		AverageLatencyMs: aggregation.AverageLatencyMs,
	}

	if aggregation.TotalFaces > 0 {
		summary.MatchRate = float64(aggregation.TotalMatched) / float64(aggregation.TotalFaces)
	}

	return summary, nil
}
