package vision

import "context"

// Category is the collaborator's hint about what a suspicious image looks like.
type Category string

const (
	CategoryNone          Category = "none"
	CategoryScreenshot    Category = "screenshot"
	CategoryInappropriate Category = "inappropriate"
)

type Score struct {
	Category   Category
	Confidence float64
}

// Analyzer scores an image reference for moderation suspicion. Implementations
// may fail; callers are expected to degrade to text-only classification.
type Analyzer interface {
	Score(ctx context.Context, imageRef string) (Score, error)
}
