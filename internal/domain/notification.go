package domain

import "time"

// NotificationChannel selects the delivery mechanism.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
	ChannelPush  NotificationChannel = "push"
	ChannelInApp NotificationChannel = "in_app"
)

// Valid reports whether c is a known channel.
func (c NotificationChannel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp:
		return true
	}
	return false
}

// NotificationPriority orders delivery urgency.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// NotificationStatus is the delivery state.
// draft → queued → sent | failed. failed after the retry cap is final.
type NotificationStatus string

const (
	NotifDraft  NotificationStatus = "draft"
	NotifQueued NotificationStatus = "queued"
	NotifSent   NotificationStatus = "sent"
	NotifFailed NotificationStatus = "failed"
)

// Notification is a delivery request handed to the gateway. Dispatch is
// fire-and-forget relative to the financial operation that raised it.
type Notification struct {
	ID         string               `json:"id"`
	CustomerID string               `json:"customer_id"`
	Channel    NotificationChannel  `json:"channel"`
	Subject    string               `json:"subject"`
	Message    string               `json:"message"`
	Priority   NotificationPriority `json:"priority"`
	Status     NotificationStatus   `json:"status"`

	RetryCount       int        `json:"retry_count"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	GatewayReference string     `json:"gateway_reference,omitempty"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
