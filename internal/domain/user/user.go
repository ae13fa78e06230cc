package user

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// MaxNotifications bounds the per-user notification history; the oldest
// entries are dropped once the cap is reached.
const MaxNotifications = 50

// User is the single persisted record of the system. One user per unique
// email (exact match, no case folding — the store enforces uniqueness).
type User struct {
	ID            string           `json:"id" bson:"_id,omitempty"`
	Email         string           `json:"email" bson:"email"`
	PasswordHash  string           `json:"-" bson:"password_hash"` // never expose the hash in JSON
	Name          string           `json:"name" bson:"name"`
	Portfolio     []PortfolioEntry `json:"portfolio" bson:"portfolio"`
	Watchlist     []string         `json:"watchlist" bson:"watchlist"`
	Notifications []Notification   `json:"notifications" bson:"notifications"`
	CreatedAt     time.Time        `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time        `json:"updatedAt" bson:"updated_at"`
}

// PortfolioEntry stores whatever the client computed; value and profit/loss
// are not derived server-side.
type PortfolioEntry struct {
	ID                   string    `json:"id" bson:"id"`
	Symbol               string    `json:"symbol" bson:"symbol"`
	Quantity             float64   `json:"quantity" bson:"quantity"`
	BuyPrice             float64   `json:"buyPrice" bson:"buy_price"`
	CurrentPrice         float64   `json:"currentPrice" bson:"current_price"`
	Value                float64   `json:"value" bson:"value"`
	ProfitLoss           float64   `json:"profitLoss" bson:"profit_loss"`
	ProfitLossPercentage float64   `json:"profitLossPercentage" bson:"profit_loss_percentage"`
	LastUpdated          time.Time `json:"lastUpdated" bson:"last_updated"`
}

type Notification struct {
	ID      string    `json:"id" bson:"id"`
	Message string    `json:"message" bson:"message"`
	Type    string    `json:"type" bson:"type"`
	Date    time.Time `json:"date" bson:"date"`
	Read    bool      `json:"read" bson:"read"`
}

// NewNotification builds an unread notification with a server-assigned id and
// creation time. An empty type defaults to "info".
func NewNotification(message, typ string) Notification {
	if typ == "" {
		typ = "info"
	}

	return Notification{
		ID:      uuid.NewString(),
		Message: message,
		Type:    typ,
		Date:    time.Now().UTC(),
		Read:    false,
	}
}

// AddNotification prepends n (newest-first) and trims the history to
// MaxNotifications, dropping the oldest.
func (u *User) AddNotification(n Notification) {
	u.Notifications = append([]Notification{n}, u.Notifications...)

	if len(u.Notifications) > MaxNotifications {
		u.Notifications = u.Notifications[:MaxNotifications]
	}
}

// FindNotification resolves ref to a position in the notification list.
// A decimal ref is treated as the positional index the original API exposed;
// anything else is matched against the stable per-notification id.
func (u *User) FindNotification(ref string) (int, bool) {
	if idx, err := strconv.Atoi(ref); err == nil {
		if idx < 0 || idx >= len(u.Notifications) {
			return 0, false
		}
		return idx, true
	}

	for i, n := range u.Notifications {
		if n.ID == ref {
			return i, true
		}
	}

	return 0, false
}

// EnsureEntryIDs assigns an id to every portfolio entry that arrived without
// one. Entry identity is independent of the owning user.
func EnsureEntryIDs(entries []PortfolioEntry) []PortfolioEntry {
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
	}
	return entries
}
