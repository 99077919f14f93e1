package glimpse

import (
	"fmt"
	"net/http"

	"glimpse/describer"
	"glimpse/internal/openai"
	"glimpse/internal/pollinations"
)

type InitOptions struct {
	PollinationsServer string
	PollinationsModel  string

	OpenAI        bool
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	HttpClient *http.Client // if nil uses http.DefaultClient
}

type Glimpse struct {
	describer.Describer
}

func Init(gio InitOptions) (*Glimpse, error) {
	g := &Glimpse{}

	httpClient := gio.HttpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	var n int
	if gio.OpenAI {
		n++
	}
	if gio.PollinationsServer != "" {
		n++
	}
	switch n {
	case 0:
		return nil, fmt.Errorf("no provider selected")
	case 1:
		// no-op
	default:
		return nil, fmt.Errorf("multiple providers selected, only one allowed")
	}

	if gio.OpenAI {
		g.Describer = openai.Init(openai.Options{
			APIKey:  gio.OpenAIKey,
			BaseURL: gio.OpenAIBaseURL,
			Model:   gio.OpenAIModel,
		}, httpClient)
	} else {
		g.Describer = pollinations.Init(gio.PollinationsServer, gio.PollinationsModel, httpClient)
	}

	return g, nil
}
