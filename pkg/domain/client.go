package domain

import "time"

// Client is a customer known by phone number.
type Client struct {
	Phone       string    `json:"phone"`
	Name        string    `json:"name"`
	UserID      string    `json:"user_id"`
	TotalVisits int       `json:"total_visits"`
	TotalSpent  int64     `json:"total_spent"`
	LastVisit   time.Time `json:"last_visit,omitzero"`
}

// MasterStats aggregates confirmed work per master.
type MasterStats struct {
	Master            string    `json:"master"`
	TotalBookings     int       `json:"total_bookings"`
	ConfirmedBookings int       `json:"confirmed_bookings"`
	Revenue           int64     `json:"revenue"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Summary is the operator statistics report.
type Summary struct {
	Masters        []MasterStats
	TotalBookings  int
	Confirmed      int
	Revenue        int64
	ActiveSessions int
}
