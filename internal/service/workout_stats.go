package service

import (
	"math"
	"sort"
	"strings"

	"github.com/ibaf-upi/ibaf-api/internal/models"
)

// WeeklyStats buckets logs into the ten program weeks. Logs outside the
// program range are ignored.
func WeeklyStats(logs []models.WorkoutLog) []models.WeeklyStat {
	stats := make([]models.WeeklyStat, 0, models.MaxWeek-models.MinWeek+1)
	for week := models.MinWeek; week <= models.MaxWeek; week++ {
		stats = append(stats, models.WeeklyStat{
			Week:     week,
			Label:    models.WeekLabel(week),
			Category: models.CategoryForWeek(week),
		})
	}
	for _, log := range logs {
		if log.Week < models.MinWeek || log.Week > models.MaxWeek {
			continue
		}
		st := &stats[log.Week-models.MinWeek]
		st.TotalVolume += log.TotalVolume
		st.WorkoutDays++
		st.TotalExercises += len(log.Exercises)
		st.HasData = true
	}
	return stats
}

// Summarize builds the member progress overview.
func Summarize(logs []models.WorkoutLog) models.WorkoutSummary {
	weeks := WeeklyStats(logs)
	summary := models.WorkoutSummary{Weeks: weeks}
	for _, w := range weeks {
		summary.TotalVolume += w.TotalVolume
		summary.TotalWorkouts += w.WorkoutDays
		if w.HasData {
			summary.WeeksCompleted++
		}
	}
	pre, post := weeks[0], weeks[len(weeks)-1]
	if pre.HasData && post.HasData && pre.TotalVolume > 0 {
		pct := math.Round((post.TotalVolume-pre.TotalVolume)/pre.TotalVolume*1000) / 10
		summary.Improvement = &pct
	}
	return summary
}

// SortLogs orders logs by week then day.
func SortLogs(logs []models.WorkoutLog) {
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].Week != logs[j].Week {
			return logs[i].Week < logs[j].Week
		}
		return logs[i].Day < logs[j].Day
	})
}

// sanitizeExercises drops unnamed exercises and trims names.
func sanitizeExercises(in []models.Exercise) models.Exercises {
	out := make(models.Exercises, 0, len(in))
	for _, ex := range in {
		name := strings.TrimSpace(ex.Name)
		if name == "" {
			continue
		}
		sets := ex.Sets
		if sets == nil {
			sets = []models.ExerciseSet{}
		}
		out = append(out, models.Exercise{Name: name, Sets: sets})
	}
	return out
}
