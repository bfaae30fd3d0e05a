package models

import "time"

// Evaluation is one persisted audit entry for a completed image evaluation.
// Only the decision summary is stored; per-pair judgments stay in the API
// response.
type Evaluation struct {
	ID           uint   `gorm:"primaryKey"`
	URL          string `gorm:"size:2048;not null;index"`
	UserID       string `gorm:"size:128;index"`
	FinalProb    float64
	Votes        int
	GatePassed   bool
	PersonScore  float64
	FemaleScore  float64
	Agg          string `gorm:"size:32"`
	Intervention bool
	CreatedAt    time.Time
}
