package publish

import (
	"context"

	"github.com/atrishin/feedline/app/database"
)

// Publisher delivers one entry to the messaging platform. Implementations
// classify their failures as transient or permanent via DeliveryError.
type Publisher interface {
	DeliverPost(ctx context.Context, entry *database.Entry, destination string) (messageID string, err error)
	DeliverStory(ctx context.Context, entry *database.Entry, recipient string) error
	// DeliverText sends a pre-rendered message (digest) to a destination.
	DeliverText(ctx context.Context, text, destination string) (messageID string, err error)
}

type NotificationResult struct {
	OperatorID     int64
	NotificationID string
	Err            error
}

// Notifier dispatches moderation previews to operators. One result per
// operator; individual failures do not abort the rest.
type Notifier interface {
	SendModerationPreview(ctx context.Context, entry *database.Entry, operatorIDs []int64) []NotificationResult
}

// Media fetches and prepares images. Any failure is non-fatal: delivery
// proceeds text-only.
type Media interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
	TransformForPost(data []byte) ([]byte, error)
	TransformForStory(data []byte, overlayText string) ([]byte, error)
}
