package models

import (
	"time"
)

type Course struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Credits     int       `json:"credits" db:"credits"`
	LecturerID  int64     `json:"lecturer_id" db:"lecturer_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
