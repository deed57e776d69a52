package usecase

import (
	"github.com/montanaflynn/stats"

	"github.com/incubyte/copilot-stats/internal/domain"
)

// Summarize derives the summary figures of a report: the assistant review
// rate over all scanned pull requests, each category's rounded percentage of
// the category total, and the median number of reviewed pull requests per
// repository.
func Summarize(r *domain.Report) *domain.Summary {
	reviewed := r.ReviewedCount()
	s := &domain.Summary{
		ScannedPRs:          r.Scanned,
		ReviewedPRs:         reviewed,
		AssistantReviewRate: percent(float64(reviewed), float64(r.Scanned)),
		CategoryShare:       make(map[string]float64, 5),
	}

	categories := []struct {
		name  string
		value int
	}{
		{"code", r.Totals.Code},
		{"test", r.Totals.Test},
		{"review", r.Totals.Review},
		{"docs", r.Totals.Docs},
		{"other", r.Totals.Other},
	}
	values := make(stats.Float64Data, 0, len(categories))
	for _, c := range categories {
		values = append(values, float64(c.value))
	}
	total, err := stats.Sum(values)
	if err != nil {
		total = 0
	}
	for _, c := range categories {
		s.CategoryShare[c.name] = percent(float64(c.value), total)
	}

	perRepo := make(stats.Float64Data, 0, len(r.ReviewedByRepo))
	for _, prs := range r.ReviewedByRepo {
		perRepo = append(perRepo, float64(len(prs)))
	}
	if median, err := stats.Median(perRepo); err == nil {
		s.MedianPerRepo = median
	}
	return s
}

func percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	rounded, err := stats.Round(part/whole*100, 0)
	if err != nil {
		return 0
	}
	return rounded
}
