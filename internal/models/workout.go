package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Program bounds.
const (
	MinWeek            = 0
	MaxWeek            = 9
	MinDay             = 1
	MaxDay             = 7
	MaxExercisesPerLog = 7
	MaxRepsPerSet      = 10000
	WorkoutDateLayout  = "2006-01-02"
	ExportDateLayout   = "02/01/2006"
)

// DayNames maps day 1..7 to its Indonesian name.
var DayNames = [...]string{"", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu", "Minggu"}

// DayName returns the Indonesian name for day, or "" when out of range.
func DayName(day int) string {
	if day < MinDay || day > MaxDay {
		return ""
	}
	return DayNames[day]
}

// WeekCategory labels a program week.
type WeekCategory string

const (
	CategoryPreTest     WeekCategory = "Pre-Test"
	CategoryPostTest    WeekCategory = "Post-Test"
	CategoryHypertrophy WeekCategory = "Hypertrophy"
	CategoryDeload      WeekCategory = "Deload"
	CategoryStrength    WeekCategory = "Strength"
)

// CategoryForWeek maps week 0..9 to its training block.
func CategoryForWeek(week int) WeekCategory {
	switch {
	case week == 0:
		return CategoryPreTest
	case week == 9:
		return CategoryPostTest
	case week == 4 || week == 8:
		return CategoryDeload
	case week >= 1 && week <= 3:
		return CategoryHypertrophy
	default:
		return CategoryStrength
	}
}

// WeekLabel is the human label used in exports.
func WeekLabel(week int) string {
	switch week {
	case 0:
		return string(CategoryPreTest)
	case 9:
		return string(CategoryPostTest)
	default:
		return fmt.Sprintf("Minggu %d", week)
	}
}

// ExerciseSet is one set of an exercise.
type ExerciseSet struct {
	Weight float64 `json:"weight"`
	Reps   int     `json:"reps"`
}

// UnmarshalJSON accepts numbers or numeric strings; blank or unparsable
// values count as zero. Non-finite weights and fractional or oversized reps
// are rejected.
func (s *ExerciseSet) UnmarshalJSON(data []byte) error {
	var raw struct {
		Weight json.RawMessage `json:"weight"`
		Reps   json.RawMessage `json:"reps"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	weight := looseNumber(raw.Weight)
	if !finite(weight) {
		return fmt.Errorf("weight must be a finite number")
	}
	reps := looseNumber(raw.Reps)
	if !finite(reps) || reps != math.Trunc(reps) || math.Abs(reps) > MaxRepsPerSet {
		return fmt.Errorf("reps must be a whole number up to %d", MaxRepsPerSet)
	}
	s.Weight = weight
	s.Reps = int(reps)
	return nil
}

// Valid reports whether the set holds finite, non-negative values in range.
func (s ExerciseSet) Valid() bool {
	return finite(s.Weight) && s.Weight >= 0 && s.Reps >= 0 && s.Reps <= MaxRepsPerSet
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func looseNumber(raw json.RawMessage) float64 {
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if text == "" || text == "null" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0
	}
	return v
}

// Volume is weight times reps.
func (s ExerciseSet) Volume() float64 {
	return s.Weight * float64(s.Reps)
}

// Exercise is a named movement with its sets.
type Exercise struct {
	Name string        `json:"name"`
	Sets []ExerciseSet `json:"sets"`
}

// Volume sums the volume of every set.
func (e Exercise) Volume() float64 {
	var total float64
	for _, set := range e.Sets {
		total += set.Volume()
	}
	return total
}

// Exercises is stored as a JSONB column.
type Exercises []Exercise

// Volume sums the volume of every exercise.
func (e Exercises) Volume() float64 {
	var total float64
	for _, ex := range e {
		total += ex.Volume()
	}
	return total
}

// Value implements driver.Valuer.
func (e Exercises) Value() (driver.Value, error) {
	if e == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(e)
}

// Scan implements sql.Scanner.
func (e *Exercises) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*e = Exercises{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported exercises type %T", src)
	}
	return json.Unmarshal(raw, e)
}

// WorkoutLog is one training session of a member.
type WorkoutLog struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"userId"`
	UserEmail   string    `db:"user_email" json:"userEmail"`
	Week        int       `db:"week" json:"week"`
	Day         int       `db:"day" json:"day"`
	DayName     string    `db:"day_name" json:"dayName"`
	WorkoutDate string    `db:"workout_date" json:"workoutDate"`
	Exercises   Exercises `db:"exercises" json:"exercises"`
	TotalVolume float64   `db:"total_volume" json:"totalVolume"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// WorkoutLogRequest is the member payload for creating or replacing a log.
// totalVolume is always derived server-side.
type WorkoutLogRequest struct {
	Week        *int       `json:"week" validate:"required,min=0,max=9"`
	Day         int        `json:"day" validate:"required,min=1,max=7"`
	WorkoutDate string     `json:"workoutDate" validate:"required,datetime=2006-01-02"`
	Exercises   []Exercise `json:"exercises" validate:"required,min=1,max=7"`
}

// WorkoutLogUpdateRequest replaces the date and exercises of a log. Week and
// day are fixed once logged.
type WorkoutLogUpdateRequest struct {
	WorkoutDate string     `json:"workoutDate" validate:"required,datetime=2006-01-02"`
	Exercises   []Exercise `json:"exercises" validate:"required,min=1,max=7"`
}

// WorkoutLogFilter narrows workout log listings.
type WorkoutLogFilter struct {
	UserID string
	Week   *int
	Day    *int
}

// WeeklyStat summarises one program week.
type WeeklyStat struct {
	Week           int          `json:"week"`
	Label          string       `json:"label"`
	Category       WeekCategory `json:"category"`
	TotalVolume    float64      `json:"totalVolume"`
	WorkoutDays    int          `json:"workoutDays"`
	TotalExercises int          `json:"totalExercises"`
	HasData        bool         `json:"hasData"`
}

// WorkoutSummary is the member progress overview.
type WorkoutSummary struct {
	Weeks          []WeeklyStat `json:"weeks"`
	TotalVolume    float64      `json:"totalVolume"`
	TotalWorkouts  int          `json:"totalWorkouts"`
	WeeksCompleted int          `json:"weeksCompleted"`
	// Improvement compares post-test to pre-test volume in percent. Nil until
	// both tests have data.
	Improvement *float64 `json:"improvement,omitempty"`
}
