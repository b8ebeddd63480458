package model

// Working-hours patterns. recurring_day with week_of_month = 5 means the
// last occurrence of the weekday in the month.
const (
	PatternWeekly        = "weekly"
	PatternSpecificDates = "specific_dates"
	PatternRecurringDay  = "recurring_day"
)

type Staff struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Specialty        string   `json:"specialty"`
	Bio              string   `json:"bio,omitempty"`
	ImageURL         string   `json:"image_url,omitempty"`
	Phone            string   `json:"phone,omitempty"`
	Email            string   `json:"email,omitempty"`
	TelegramBotToken string   `json:"telegram_bot_token,omitempty"`
	TelegramChatID   string   `json:"telegram_chat_id,omitempty"`
	IsActive         bool     `json:"is_active"`
	ServiceIDs       []string `json:"service_ids"`
}

type Break struct {
	ID        string `json:"id,omitempty"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type WorkingHours struct {
	ID          string  `json:"id,omitempty"`
	StaffID     string  `json:"staff_id"`
	Pattern     string  `json:"pattern"`
	DayOfWeek   *int    `json:"day_of_week,omitempty"`
	StartDate   string  `json:"start_date,omitempty"`
	EndDate     string  `json:"end_date,omitempty"`
	WeekOfMonth *int    `json:"week_of_month,omitempty"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	IsActive    bool    `json:"is_active"`
	Breaks      []Break `json:"breaks"`
}

type TimeOff struct {
	ID        string `json:"id,omitempty"`
	StaffID   string `json:"staff_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason,omitempty"`
}

type Service struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	Price           float64 `json:"price"`
	DurationMinutes int     `json:"duration_minutes"`
	IsActive        bool    `json:"is_active"`
}

type Template struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	MessageTemplate string `json:"message_template"`
	Route           string `json:"route,omitempty"`
	DelayHours      int    `json:"delay_hours"`
	IsActive        bool   `json:"is_active"`
}

type GatewaySettings struct {
	APIKey             string `json:"api_key"`
	SenderName         string `json:"sender_name"`
	DefaultRoute       string `json:"default_route"`
	DefaultPriority    int    `json:"default_priority"`
	TestMode           bool   `json:"test_mode"`
	Location           string `json:"location"`
	BaseURL            string `json:"base_url"`
	SiteURL            string `json:"site_url"`
	QueueCheckInterval int    `json:"queue_check_interval_s"`
	BatchSize          int    `json:"batch_size"`
}
