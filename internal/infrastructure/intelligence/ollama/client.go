// Package ollama adapts a local Ollama server to the document
// intelligence port. The service is treated as a black box that may
// fail transiently or return malformed text; retries and the circuit
// breaker live here, response parsing stays with the callers.
package ollama

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/mkovalenko/docupipe/internal/core/ports"
	"github.com/mkovalenko/docupipe/internal/infrastructure/resilience"
)

// maxPromptChars bounds how much document text is embedded into one
// prompt; anything longer is truncated, not rejected.
const maxPromptChars = 8000

type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Executor          *resilience.Executor
	Observer          ports.AICallObserver
}

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
	observer   ports.AICallObserver
}

func New(baseURL, model string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	rps := options.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := options.Burst
	if burst <= 0 {
		burst = 2
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		executor:   options.Executor,
		observer:   options.Observer,
	}
}

// Analyze sends one instruction over the document content. Text content
// is embedded into the prompt; binary content (images, scanned PDFs)
// rides along base64-encoded for the multimodal model.
func (c *Client) Analyze(ctx context.Context, content []byte, instruction, language string) (string, error) {
	start := time.Now()
	response, err := c.analyze(ctx, content, instruction, language)
	if c.observer != nil {
		c.observer.ObserveAICall("analyze", time.Since(start), err)
	}
	return response, wrapTemporaryIfNeeded("analyze", err)
}

func (c *Client) analyze(ctx context.Context, content []byte, instruction, language string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	request := map[string]any{
		"model":  c.model,
		"prompt": buildPrompt(content, instruction, language),
		"stream": false,
	}
	if !isTextContent(content) {
		request["images"] = []string{base64.StdEncoding.EncodeToString(content)}
	}

	var response struct {
		Response string `json:"response"`
	}
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", request, &response, "generate")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.generate", call, classifyIntelligenceError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func buildPrompt(content []byte, instruction, language string) string {
	var sb strings.Builder
	sb.WriteString(instruction)
	if language != "" {
		sb.WriteString("\nRespond in language: ")
		sb.WriteString(language)
		sb.WriteString(".")
	}
	if isTextContent(content) && len(content) > 0 {
		sb.WriteString("\n\nDocument:\n")
		sb.WriteString(truncate(string(content), maxPromptChars))
	}
	return sb.String()
}

func isTextContent(content []byte) bool {
	if !utf8.Valid(content) {
		return false
	}
	for _, b := range content {
		if b == 0 {
			return false
		}
	}
	return true
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
