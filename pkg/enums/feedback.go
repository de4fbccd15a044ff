package enums

// FeedbackType says what a piece of feedback rates.
type FeedbackType string

const (
	FeedbackTypeProduct FeedbackType = "product"
	FeedbackTypeOrder   FeedbackType = "order"
	FeedbackTypeService FeedbackType = "service"
)

var validFeedbackTypes = set[FeedbackType]{
	FeedbackTypeProduct,
	FeedbackTypeOrder,
	FeedbackTypeService,
}

func (f FeedbackType) IsValid() bool {
	return validFeedbackTypes.has(f)
}

// ParseFeedbackType converts raw input into a FeedbackType.
func ParseFeedbackType(value string) (FeedbackType, error) {
	return validFeedbackTypes.parse("feedback type", value)
}
