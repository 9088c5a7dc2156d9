// Package deepl provides a translation provider backed by the DeepL REST API
// (POST /v2/translate with form-encoded parameters).
package deepl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bridgit-ai/bridgit/pkg/provider/translate"
)

const (
	defaultBaseURL = "https://api-free.deepl.com/v2"
	defaultTimeout = 15 * time.Second
)

// targetOverrides maps ISO 639-1 codes to the regional variants DeepL
// requires for ambiguous targets.
var targetOverrides = map[string]string{
	"EN": "EN-US",
	"PT": "PT-PT",
	"ZH": "ZH-CN",
}

// Provider implements translate.Provider using the DeepL HTTP API.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Compile-time assertion that Provider satisfies translate.Provider.
var _ translate.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithBaseURL overrides the API endpoint, e.g. to select the paid tier
// ("https://api.deepl.com/v2").
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New creates a DeepL Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepl: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// translateResponse mirrors the DeepL /translate JSON response body.
type translateResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	if req.Text == "" {
		return translate.Result{}, errors.New("deepl: empty text")
	}
	if req.Target == "" {
		return translate.Result{}, errors.New("deepl: target language is required")
	}

	form := url.Values{}
	form.Set("text", req.Text)
	form.Set("target_lang", targetCode(req.Target))
	if req.Source != "" {
		form.Set("source_lang", strings.ToUpper(req.Source))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return translate.Result{}, fmt.Errorf("deepl: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return translate.Result{}, fmt.Errorf("deepl: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return translate.Result{}, fmt.Errorf("deepl: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return translate.Result{}, fmt.Errorf("deepl: decode response: %w", err)
	}
	if len(decoded.Translations) == 0 {
		return translate.Result{}, errors.New("deepl: empty translations in response")
	}

	t := decoded.Translations[0]
	return translate.Result{
		Text:           t.Text,
		DetectedSource: t.DetectedSourceLanguage,
	}, nil
}

// targetCode upper-cases an ISO 639-1 code and applies DeepL's regional
// variant requirements.
func targetCode(lang string) string {
	up := strings.ToUpper(lang)
	if v, ok := targetOverrides[up]; ok {
		return v
	}
	return up
}
