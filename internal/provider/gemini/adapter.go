// Package gemini implements the provider adapter for the gemini CLI. The CLI
// requires an attached terminal, so each call spawns it bound to a freshly
// allocated pseudo-terminal and reads raw output that must be stripped of
// escape sequences before use.
package gemini

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/creack/pty"
	"github.com/rs/zerolog/log"

	"github.com/okabe-d/llm-hub/internal/domain"
	"github.com/okabe-d/llm-hub/internal/provider"
)

const (
	providerName   = "gemini"
	defaultTimeout = 120 * time.Second

	ptyRows = 24
	ptyCols = 200

	syncReadSize   = 1024
	streamReadSize = 256
)

// supportedModels is hardcoded; the CLI's model listing output is unstable
var supportedModels = []string{
	"gemini-2.5-pro",
	"gemini-2.5-flash",
	"gemini-2.0-flash",
}

// Adapter invokes the gemini CLI behind a pseudo-terminal
type Adapter struct {
	command      string
	authPath     string
	defaultModel string
	supported    []string
}

// NewAdapter creates a gemini adapter. authPath points at the OAuth
// credentials file; empty means the CLI's default location.
func NewAdapter(authPath, defaultModel string) *Adapter {
	if defaultModel == "" {
		defaultModel = supportedModels[0]
	}
	return &Adapter{
		command:      "gemini",
		authPath:     authPath,
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

	log.Info().Strs("models", a.supported).Msg("gemini adapter initialized")
	return nil
}

// ResolveModel falls back to the default model; the gemini CLI has no
// short-name aliases
func (a *Adapter) ResolveModel(model string) string {
	if model == "" {
		return a.defaultModel
	}
	return model
}

func (a *Adapter) env() []string {
	env := os.Environ()
	// TERM=dumb minimizes the escape sequences the CLI emits
	env = append(env, "TERM=dumb")
	if a.authPath != "" {
		// The CLI looks up credentials under $HOME/.gemini
		env = append(env, "HOME="+filepath.Dir(filepath.Dir(a.authPath)))
	}
	return env
}

// fullPrompt prepends the system prompt; the CLI has no separate system flag
func fullPrompt(req provider.Request) string {
	if req.SystemPrompt == "" {
		return req.Prompt
	}
	return req.SystemPrompt + "\n\n" + req.Prompt
}

func (a *Adapter) spawn(prompt, model string) (*exec.Cmd, *os.File, error) {
	cmd := exec.Command(a.command, "-p", prompt, "-m", model)
	cmd.Env = a.env()

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: ptyRows, Cols: ptyCols})
	if err != nil {
		return nil, nil, err
	}
	return cmd, ptmx, nil
}

// pump reads PTY output in readSize chunks and hands each one to emit until
// the process exits, the context is done, or emit declines more input. The
// PTY handle is released on every exit path.
func (a *Adapter) pump(ctx context.Context, cmd *exec.Cmd, ptmx *os.File, readSize int, emit func(string) bool) error {
	defer ptmx.Close()

	chunks := make(chan []byte, 8)
	go func() {
		defer close(chunks)
		buf := make([]byte, readSize)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				// Reading the master side fails with EIO once the child
				// exits; treat any error as end of output
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return cmd.Wait()
			}
			if !emit(string(chunk)) {
				_ = cmd.Process.Kill()
				_ = cmd.Wait()
				return nil
			}
		}
	}
}

// Chat runs the CLI to completion and returns the cleaned, trimmed output
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

	log.Debug().Str("model", model).Msg("executing gemini CLI")

	cmd, ptmx, err := a.spawn(fullPrompt(req), model)
	if err != nil {
		return "", domain.NewProviderError(providerName, "gemini CLI failed: "+err.Error())
	}

	var raw bytes.Buffer
	err = a.pump(ctx, cmd, ptmx, syncReadSize, func(chunk string) bool {
		raw.WriteString(chunk)
		return true
	})

	output := strings.TrimSpace(ansi.Strip(raw.String()))

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "", domain.NewProviderTimeout(providerName, timeout)
	case errors.Is(err, context.Canceled):
		return "", err
	case err != nil && output == "":
		return "", domain.NewProviderError(providerName, "gemini CLI failed: "+err.Error())
	}

	return output, nil
}

// ChatStream yields cleaned PTY chunks as they are read. Chunk boundaries are
// whatever the terminal delivers, with no token or line alignment.
func (a *Adapter) ChatStream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	model := a.ResolveModel(req.Model)
	if !provider.Supports(a, model) {
		return nil, domain.NewInvalidModel(model, providerName, a.supported)
	}

	cmd, ptmx, err := a.spawn(fullPrompt(req), model)
	if err != nil {
		return nil, domain.NewProviderError(providerName, "gemini CLI failed: "+err.Error())
	}

	ch := make(chan provider.Chunk, 16)

	go func() {
		defer close(ch)

		var yielded bool

		err := a.pump(ctx, cmd, ptmx, streamReadSize, func(chunk string) bool {
			clean := ansi.Strip(chunk)
			if clean == "" {
				return true
			}
			select {
			case ch <- provider.Chunk{Text: clean}:
				yielded = true
				return true
			case <-ctx.Done():
				return false
			}
		})

		if err != nil && !errors.Is(err, context.Canceled) && !yielded {
			ch <- provider.Chunk{Err: domain.NewProviderError(providerName, "gemini CLI failed: "+err.Error())}
		}
	}()

	return ch, nil
}

// HealthCheck verifies the CLI binary and OAuth credentials are present
func (a *Adapter) HealthCheck(ctx context.Context) provider.Health {
	if _, err := exec.LookPath(a.command); err != nil {
		return provider.Health{Status: provider.StatusUnhealthy, Error: "gemini CLI not found in PATH"}
	}

	credsPath := a.authPath
	if credsPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return provider.Health{Status: provider.StatusUnhealthy, Error: "cannot resolve home directory: " + err.Error()}
		}
		credsPath = filepath.Join(home, ".gemini", "oauth_creds.json")
	}

	if _, err := os.Stat(credsPath); err != nil {
		return provider.Health{
			Status: provider.StatusUnhealthy,
			Error:  "OAuth credentials not found: " + credsPath,
		}
	}

	return provider.Health{Status: provider.StatusHealthy, SupportedModels: a.supported}
}
