package notifier

import (
	"context"

	"pr-review-digest/internal/digest"
)

// Notifier delivers a digest to one destination
type Notifier interface {
	Name() string
	Notify(ctx context.Context, d *digest.Digest) error
}
