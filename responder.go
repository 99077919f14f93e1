package glimpse

import (
	"context"
	"fmt"
	"strings"

	"glimpse/describer"
	"glimpse/internal/probe"
	"glimpse/internal/tags"
)

const defaultPrompt = "Please describe this image in detail with markdown formatting."

// visionFallback is the assistant turn produced when an image was supplied
// but the provider cannot accept image input. The "does not support" phrase
// is what flags the reply as degraded in the extracted tags.
const visionFallback = "⚠️ **Note**: Image analysis requires a vision-capable model. The configured model does not support direct image uploads.\n\n" +
	"To analyze images:\n" +
	"1. Use a model with vision capabilities\n" +
	"2. Or describe the image in text for analysis"

const visionRemediation = "The configured model does not support image analysis.\n\n" +
	"**Solutions**:\n" +
	"1. Check if your API key has access to vision models\n" +
	"2. Point the service at a vision-capable endpoint\n" +
	"3. Describe the image in text instead of uploading it"

// Reply is the normalized outcome of one description request, regardless of
// the shape the provider answered in.
type Reply struct {
	Text         string
	Tags         tags.Tags
	ProviderTags []string // parsed from a trailing TAGS: line, if present
	Degraded     bool     // Text came from the vision fallback path
}

// Responder builds provider requests for a chat turn and normalizes the
// response into display text plus structured tags.
type Responder struct {
	d      describer.Describer
	probes *probe.Cache
	maxCtx int // history turns sent to the provider
}

func NewResponder(d describer.Describer, probes *probe.Cache, maxContextTurns int) *Responder {
	if maxContextTurns <= 0 {
		maxContextTurns = 2
	}
	return &Responder{d: d, probes: probes, maxCtx: maxContextTurns}
}

// Describe produces the assistant turn for one request. Every request gets a
// reply or an error; an unsupported-vision provider yields the fallback
// reply rather than failing. Remote failures surface as *describer.ProviderError.
func (r *Responder) Describe(ctx context.Context, prompt, imageDataURI string, history []describer.Turn) (*Reply, error) {
	if imageDataURI != "" && !r.probes.SupportsVision(ctx, r.d) {
		text := visionFallback
		if p := strings.TrimSpace(prompt); p != "" {
			text += fmt.Sprintf("\n\n**Your question**: %q\n\n*Please describe the image in text for me to analyze.*", p)
		}
		return &Reply{Text: text, Tags: tags.Extract(text), Degraded: true}, nil
	}

	req := describer.Request{
		Prompt:       prompt,
		ImageDataURI: imageDataURI,
		History:      boundHistory(history, r.maxCtx),
	}
	if req.Prompt == "" && imageDataURI != "" {
		req.Prompt = defaultPrompt
	}

	text, err := r.d.Describe(ctx, req)
	if err != nil {
		if describer.VisionRejected(err) {
			return nil, &describer.ProviderError{
				StatusCode: describer.StatusOf(err),
				Message:    visionRemediation,
			}
		}
		return nil, err
	}

	reply := &Reply{Text: strings.TrimSpace(text)}

	// Some providers honor the system prompt and end with an explicit tag
	// line. Split it off the display text when present.
	if i := strings.LastIndex(reply.Text, describer.TagMarker); i >= 0 {
		raw := reply.Text[i+len(describer.TagMarker):]
		reply.Text = strings.TrimSpace(reply.Text[:i])
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				reply.ProviderTags = append(reply.ProviderTags, t)
			}
		}
	}

	reply.Tags = tags.Extract(reply.Text)
	return reply, nil
}

func boundHistory(history []describer.Turn, n int) []describer.Turn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
