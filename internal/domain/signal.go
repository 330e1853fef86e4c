package domain

import "time"

// SourceApp identifies which kind of app posted a notification.
type SourceApp string

const (
	SourceProfessional SourceApp = "professional"
	SourceEmail        SourceApp = "email"
	SourceMessaging    SourceApp = "messaging"
	SourceUnknown      SourceApp = "unknown"
)

// InboundSignal is a raw platform notification. It is consumed once by the router.
type InboundSignal struct {
	Source     SourceApp
	PackageID  string
	Title      string
	Text       string
	ReceivedAt time.Time
}

// Decision is the router's verdict for a signal.
type Decision struct {
	Trigger    bool
	SearchKey  string
	SourceHint SourceApp
	// Query is the mailbox search used to locate the message behind the notification.
	Query string
}

// SignalMessage is the transport format sent to queue backends.
type SignalMessage struct {
	SignalID   string    `json:"signal_id"`
	Source     SourceApp `json:"source"`
	PackageID  string    `json:"package_id"`
	SearchKey  string    `json:"search_key"`
	Query      string    `json:"query"`
	ReceivedAt time.Time `json:"received_at"`
}
