package claude

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/okabe-d/llm-hub/internal/domain"
	"github.com/okabe-d/llm-hub/internal/provider"
)

func initializedAdapter(t *testing.T) *Adapter {
	t.Helper()
	adapter := NewAdapter("", "")
	assert.NoError(t, adapter.Initialize(context.Background()))
	return adapter
}

func TestAdapter_Initialize(t *testing.T) {
	adapter := initializedAdapter(t)

	assert.Equal(t, "claude", adapter.Name())
	assert.Equal(t, "claude-sonnet-4-5-20250929", adapter.DefaultModel())
	assert.Len(t, adapter.SupportedModels(), 3)
}

func TestAdapter_InitializeUnknownDefault(t *testing.T) {
	adapter := NewAdapter("", "claude-9000")
	assert.NoError(t, adapter.Initialize(context.Background()))

	// Unknown configured default falls back to the first supported model
	assert.Equal(t, "claude-sonnet-4-5-20250929", adapter.DefaultModel())
}

func TestAdapter_ResolveModel(t *testing.T) {
	adapter := initializedAdapter(t)

	tests := []struct {
		in   string
		want string
	}{
		{"", "claude-sonnet-4-5-20250929"},
		{"sonnet", "claude-sonnet-4-5-20250929"},
		{"opus", "claude-opus-4-5-20251101"},
		{"haiku", "claude-haiku-4-5-20251001"},
		{"claude-opus-4-5-20251101", "claude-opus-4-5-20251101"},
		{"unknown-model", "unknown-model"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, adapter.ResolveModel(tt.in), "input %q", tt.in)
	}
}

func TestAdapter_ChatRejectsInvalidModel(t *testing.T) {
	adapter := initializedAdapter(t)

	req := provider.Request{Prompt: "hi", Model: "gpt-4"}

	_, err := adapter.Chat(context.Background(), req)
	assert.Equal(t, domain.CodeInvalidModel, domain.CodeOf(err))

	_, err = adapter.ChatStream(context.Background(), req)
	assert.Equal(t, domain.CodeInvalidModel, domain.CodeOf(err))
}

func TestChatStream_ConsumerCancellationReapsProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell fixture")
	}

	// Stand-in CLI that streams assistant events until killed
	script := filepath.Join(t.TempDir(), "fake-cli")
	body := "#!/bin/sh\nwhile :; do\n" +
		`echo '{"type":"assistant","message":{"content":[{"type":"text","text":"x"}]}}'` +
		"\nsleep 0.01\ndone\n"
	assert.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	adapter := initializedAdapter(t)
	adapter.command = script

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := adapter.ChatStream(ctx, provider.Request{Prompt: "hi"})
	assert.NoError(t, err)

	select {
	case chunk := <-ch:
		assert.NoError(t, chunk.Err)
		assert.Equal(t, "x", chunk.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("no output from stream")
	}

	cancel()

	// The producer must tear the child down and close the channel; after
	// content was yielded a kill-induced exit is not an error
	deadline := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return
			}
			assert.NoError(t, chunk.Err)
		case <-deadline:
			t.Fatal("stream did not terminate after cancellation")
		}
	}
}

func TestParseResult(t *testing.T) {
	t.Run("valid json", func(t *testing.T) {
		result, err := parseResult([]byte(`{"type":"result","is_error":false,"result":"hello"}`))
		assert.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Equal(t, "hello", result.Result)
	})

	t.Run("error result", func(t *testing.T) {
		result, err := parseResult([]byte(`{"type":"result","is_error":true,"result":"rate limited"}`))
		assert.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("repairable json", func(t *testing.T) {
		// trailing comma is invalid but repairable
		result, err := parseResult([]byte(`{"type":"result","result":"ok",}`))
		assert.NoError(t, err)
		assert.Equal(t, "ok", result.Result)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := parseResult([]byte("segmentation fault"))
		assert.Error(t, err)
	})
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", firstNonEmpty("a", "b"))
	assert.Equal(t, "b", firstNonEmpty("", "b"))
	assert.Equal(t, "x", firstNonEmpty([]byte("x"), "y"))
	assert.Equal(t, "y", firstNonEmpty([]byte{}, "y"))
}
