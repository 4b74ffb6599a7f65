// Package claude implements the provider adapter for the claude CLI, invoked
// as a one-shot subprocess with structured JSON output.
package claude

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"

	"github.com/okabe-d/llm-hub/internal/domain"
	"github.com/okabe-d/llm-hub/internal/provider"
)

const (
	providerName   = "claude"
	defaultTimeout = 120 * time.Second

	// The CLI reads CLAUDE.md from its working directory; run from /tmp so
	// ambient project files never leak into prompts.
	workDir = "/tmp"
)

// supportedModels is hardcoded because the CLI has no --list-models mode
var supportedModels = []string{
	"claude-sonnet-4-5-20250929",
	"claude-opus-4-5-20251101",
	"claude-haiku-4-5-20251001",
}

var modelAliases = map[string]string{
	"sonnet": "claude-sonnet-4-5-20250929",
	"opus":   "claude-opus-4-5-20251101",
	"haiku":  "claude-haiku-4-5-20251001",
}

// Adapter invokes the claude CLI as a one-shot external process per call
type Adapter struct {
	command      string
	oauthToken   string
	defaultModel string
	supported    []string
}

// NewAdapter creates a claude adapter. The adapter must be initialized
// before use.
func NewAdapter(oauthToken, defaultModel string) *Adapter {
	if defaultModel == "" {
		defaultModel = supportedModels[0]
	}
	return &Adapter{
		command:      "claude",
		oauthToken:   oauthToken,
		defaultModel: defaultModel,
	}
}

// Name returns the provider identifier
func (a *Adapter) Name() string {
	return providerName
}

// SupportedModels returns the list of supported models
func (a *Adapter) SupportedModels() []string {
	return a.supported
}

// DefaultModel returns the default model
func (a *Adapter) DefaultModel() string {
	return a.defaultModel
}

// Initialize populates the supported model list
func (a *Adapter) Initialize(ctx context.Context) error {
	a.supported = append([]string(nil), supportedModels...)

	if !provider.Supports(a, a.defaultModel) {
		a.defaultModel = a.supported[0]
	}

	log.Info().Strs("models", a.supported).Msg("claude adapter initialized")
	return nil
}

// ResolveModel resolves short aliases and falls back to the default model
func (a *Adapter) ResolveModel(model string) string {
	if model == "" {
		return a.defaultModel
	}
	if canonical, ok := modelAliases[model]; ok {
		return canonical
	}
	return model
}

func (a *Adapter) env() []string {
	env := os.Environ()
	if a.oauthToken != "" {
		env = append(env, "CLAUDE_CODE_OAUTH_TOKEN="+a.oauthToken)
	}
	return env
}

// cliResult is the JSON output of `claude -p --output-format json`
type cliResult struct {
	Type    string `json:"type"`
	IsError bool   `json:"is_error"`
	Result  string `json:"result"`
}

// cliStreamEvent is one line of `claude -p --output-format stream-json --verbose`
type cliStreamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content"`
	} `json:"message,omitempty"`
}

// Chat sends a single-shot completion through the CLI
func (a *Adapter) Chat(ctx context.Context, req provider.Request) (string, error) {
	model := a.ResolveModel(req.Model)
	if !provider.Supports(a, model) {
		return "", domain.NewInvalidModel(model, providerName, a.supported)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-p", req.Prompt, "--output-format", "json", "--model", model}
	if req.SystemPrompt != "" {
		args = append(args, "--system-prompt", req.SystemPrompt)
	}

	cmd := exec.CommandContext(ctx, a.command, args...)
	cmd.Dir = workDir
	cmd.Env = a.env()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Str("model", model).Msg("executing claude CLI")

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", domain.NewProviderTimeout(providerName, timeout)
	}
	if err != nil {
		return "", domain.NewProviderError(providerName,
			fmt.Sprintf("claude CLI failed: %s", firstNonEmpty(stderr.String(), err.Error())))
	}

	result, err := parseResult(stdout.Bytes())
	if err != nil {
		return "", domain.NewProviderError(providerName, err.Error())
	}
	if result.IsError {
		return "", domain.NewProviderError(providerName, "claude error: "+result.Result)
	}

	return result.Result, nil
}

// ChatStream sends a completion in stream-json mode and yields one chunk per
// content-bearing event. A non-zero exit is reported as an error only when
// no content was extracted before it.
func (a *Adapter) ChatStream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	model := a.ResolveModel(req.Model)
	if !provider.Supports(a, model) {
		return nil, domain.NewInvalidModel(model, providerName, a.supported)
	}

	// --verbose is required by the CLI for stream-json output
	args := []string{"-p", req.Prompt, "--output-format", "stream-json", "--verbose", "--model", model}
	if req.SystemPrompt != "" {
		args = append(args, "--system-prompt", req.SystemPrompt)
	}

	cmd := exec.CommandContext(ctx, a.command, args...)
	cmd.Dir = workDir
	cmd.Env = a.env()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, domain.NewProviderError(providerName, "stdout pipe: "+err.Error())
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, domain.NewProviderError(providerName, "starting claude CLI: "+err.Error())
	}

	ch := make(chan provider.Chunk, 16)

	go func() {
		defer close(ch)

		var yielded bool

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 256*1024), 256*1024)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var event cliStreamEvent
			if err := json.Unmarshal(line, &event); err != nil {
				continue
			}
			if event.Type != "assistant" || event.Message == nil {
				continue
			}

			for _, content := range event.Message.Content {
				if content.Type != "text" || content.Text == "" {
					continue
				}
				select {
				case ch <- provider.Chunk{Text: content.Text}:
					yielded = true
				case <-ctx.Done():
					// Consumer gone; CommandContext kills the process, reap it
					_ = cmd.Wait()
					return
				}
			}
		}

		if err := cmd.Wait(); err != nil && !yielded {
			msg := firstNonEmpty(bytes.TrimSpace(stderr.Bytes()), err.Error())
			ch <- provider.Chunk{Err: domain.NewProviderError(providerName, "claude CLI failed: "+msg)}
		}
	}()

	return ch, nil
}

// HealthCheck probes the CLI binary
func (a *Adapter) HealthCheck(ctx context.Context) provider.Health {
	if _, err := exec.LookPath(a.command); err != nil {
		return provider.Health{Status: provider.StatusUnhealthy, Error: "claude CLI not found in PATH"}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.command, "--version")
	cmd.Env = a.env()

	if out, err := cmd.CombinedOutput(); err != nil {
		return provider.Health{
			Status: provider.StatusUnhealthy,
			Error:  firstNonEmpty(string(bytes.TrimSpace(out)), err.Error()),
		}
	}

	return provider.Health{Status: provider.StatusHealthy, SupportedModels: a.supported}
}

// parseResult decodes the CLI's single JSON object, repairing the payload
// when the CLI emits technically-invalid JSON
func parseResult(data []byte) (*cliResult, error) {
	var result cliResult
	if err := json.Unmarshal(data, &result); err == nil {
		return &result, nil
	}

	repaired, err := jsonrepair.JSONRepair(string(data))
	if err != nil {
		return nil, fmt.Errorf("no valid JSON object in claude output (%d bytes)", len(data))
	}
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	return &result, nil
}

func firstNonEmpty[T string | []byte](primary T, fallback string) string {
	if s := string(primary); s != "" {
		return s
	}
	return fallback
}
