// Package pollinations talks to a pollinations-style text generation server:
// a bare POST of the message list that answers with raw text rather than a
// structured choice object.
package pollinations

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"strings"

	"glimpse/describer"
)

const defaultModel = "openai"

type jsonmap map[string]any

type pollinations struct {
	srvAddr string
	model   string

	client *http.Client
}

var _ describer.Describer = &pollinations{}

func Init(srvAddr, model string, httpClient *http.Client) *pollinations {
	if model == "" {
		model = defaultModel
	}
	return &pollinations{
		srvAddr: srvAddr,
		model:   model,
		client:  httpClient,
	}
}

func (p *pollinations) Name() string { return "pollinations" }

func (p *pollinations) Model() string { return p.model }

func (p *pollinations) IsHealthy() bool {
	resp, err := p.client.Get(p.srvAddr)
	if err != nil {
		return false
	}
	resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (p *pollinations) Describe(ctx context.Context, req describer.Request) (string, error) {
	msgs := []jsonmap{{"role": "system", "content": describer.SystemPrompt}}
	for _, turn := range req.History {
		msgs = append(msgs, jsonmap{"role": string(turn.Role), "content": turn.Content})
	}
	if req.ImageDataURI != "" {
		msgs = append(msgs, jsonmap{
			"role": "user",
			"content": []jsonmap{
				{"type": "text", "text": req.Prompt},
				{"type": "image_url", "image_url": jsonmap{"url": req.ImageDataURI}},
			},
		})
	} else {
		msgs = append(msgs, jsonmap{"role": "user", "content": req.Prompt})
	}

	return p.sendRequest(ctx, msgs, nil)
}

func (p *pollinations) ProbeVision(ctx context.Context) error {
	_, err := p.sendRequest(ctx, []jsonmap{
		{
			"role": "user",
			"content": []jsonmap{
				{"type": "text", "text": "Test"},
				{"type": "image_url", "image_url": jsonmap{"url": describer.ProbeImageDataURI}},
			},
		},
	}, jsonmap{"max_tokens": 1})
	return err
}

func (p *pollinations) sendRequest(ctx context.Context, msgs []jsonmap, keys jsonmap) (string, error) {
	data := jsonmap{
		"messages": msgs,
		"model":    p.model,
		"jsonMode": false,
	}
	maps.Copy(data, keys)

	buf := bytes.NewBuffer(make([]byte, 0, 2_000_000)) // The buffer will be resized by Encode
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&data); err != nil {
		return "", err
	}
	br := bytes.NewReader(buf.Bytes())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.srvAddr, br)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &describer.ProviderError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &describer.ProviderError{Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &describer.ProviderError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	// The response body is the generated text itself.
	return strings.TrimLeft(string(body), " "), nil
}
