package model

import "time"

type Goal struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        time.Time  `json:"end_date"`
	CompletedAt    *time.Time `json:"completed_at"`
	Status         string     `json:"status"`
	Progress       int        `json:"progress"`
	TotalTasks     int        `json:"total_tasks"`
	CompletedTasks int        `json:"completed_tasks"`
	CreatedAt      time.Time  `json:"created_at"`
}
