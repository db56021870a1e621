package models

import "time"

// Task is a single to-do item. UserID is the owner and never changes.
type Task struct {
	ID        string
	UserID    string
	Title     string
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
