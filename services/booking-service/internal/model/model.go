package model

import "time"

type Appointment struct {
	ID          string
	ClientID    string
	ServiceID   string
	StaffID     string
	StaffName   string
	ServiceName string
	StartTime   time.Time
	EndTime     time.Time
	Status      string
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Client struct {
	ID    string
	Name  string
	Phone string
	Email string
}

type Service struct {
	ID              string
	Name            string
	Description     string
	Price           float64
	DurationMinutes int
	IsActive        bool
}

type Staff struct {
	ID        string
	Name      string
	Specialty string
	IsActive  bool
}
