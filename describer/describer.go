package describer

import "context"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior message supplied to the provider as conversation context.
type Turn struct {
	Role    Role
	Content string
}

// Request carries everything a provider needs to produce one description.
// ImageDataURI is optional; when empty the request is a plain text completion.
type Request struct {
	Prompt       string
	ImageDataURI string // "data:image/jpeg;base64,..."
	History      []Turn
}

const (
	// SystemPrompt is sent as the leading system turn of every request. The
	// trailing TAGS line is optional output, the heuristic extractor runs on
	// the display text either way.
	SystemPrompt = "You are a helpful image analyst. Describe images in Markdown. Always end your response with a list of 5 tags in this format: 'TAGS: tag1, tag2, tag3'."

	// TagMarker separates display text from the provider's own tag list.
	TagMarker = "TAGS:"

	MaxTokens   = 1500
	Temperature = 0.7
)

// ProbeImageDataURI is a 1x1 white JPEG used to test vision support at
// minimal cost.
const ProbeImageDataURI = "data:image/jpeg;base64,/9j/4AAQSkZJRgABAQAAAQABAAD/2wBDAAYEBQYFBAYGBQYHBwYIChAKCgkJChQODwwQFxQYGBcUFhYaHSUfGhsjHBYWICwgIyYnKSopGR8tMC0oMCUoKSj/2wBDAQcHBwoIChMKChMoGhYaKCgoKCgoKCgoKCgoKCgoKCgoKCgoKCgoKCgoKCgoKCgoKCgoKCgoKCgoKCgoKCgoKCj/wAARCAAQABADASIAAhEBAxEB/8QAFQABAQAAAAAAAAAAAAAAAAAAAAv/xAAUEAEAAAAAAAAAAAAAAAAAAAAA/8QAFQEBAQAAAAAAAAAAAAAAAAAAAAX/xAAUEQEAAAAAAAAAAAAAAAAAAAAA/9oADAMBAAIRAxEAPwCdABmX/9k="

// Describer generates an image description or text reply using a specific
// LLM provider.
type Describer interface {
	// Name returns the name of the backing provider, e.g. "openai" or
	// "pollinations".
	Name() string

	// Model returns the model the provider is configured with.
	Model() string

	// Describe sends the request to the provider and returns the raw
	// generated text. Remote failures are returned as *ProviderError.
	Describe(ctx context.Context, req Request) (string, error)

	// ProbeVision issues a minimal synthetic request carrying a tiny image.
	// A nil return means the provider accepts image input.
	ProbeVision(ctx context.Context) error

	// IsHealthy returns whether the provider endpoint is reachable.
	IsHealthy() bool
}
