package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationLoggerWritesSessionAndGlobalFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	global := filepath.Join(dir, "all", "tutor.ndjson")
	cl, err := NewConversationLogger(ConversationLogConfig{
		Enabled:       true,
		Dir:           dir,
		GlobalEnabled: true,
		GlobalPath:    global,
		QueueSize:     8,
	}, nil)
	require.NoError(t, err)

	cl.Log(ConversationLogEvent{
		UserID:     "ana",
		SessionID:  "tab-1",
		Channel:    "tutor_http",
		Direction:  "outbound",
		EventType:  "tutor_user_message",
		ContentRaw: "  por que a letra B?\r\n",
	})
	require.NoError(t, cl.Close())

	for _, path := range []string{filepath.Join(dir, "ana", "tab-1.ndjson"), global} {
		got := readSingleEvent(t, path)
		assert.Equal(t, "tutor_user_message", got.EventType, path)
		assert.Equal(t, "por que a letra B?", got.Content, path)
	}
}

func TestConversationLoggerSanitizesPathSegments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cl, err := NewConversationLogger(ConversationLogConfig{Enabled: true, Dir: dir, QueueSize: 4}, nil)
	require.NoError(t, err)
	cl.Log(ConversationLogEvent{UserID: "../../etc", SessionID: "", EventType: "tutor_model_message"})
	_ = cl.Close()

	readSingleEvent(t, filepath.Join(dir, "_.._etc", "default.ndjson"))
}

func TestConversationLoggerReopensSessionFilePerWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cl, err := NewConversationLogger(ConversationLogConfig{Enabled: true, Dir: dir, QueueSize: 64}, nil)
	require.NoError(t, err)
	path := filepath.Join(dir, "ana", "tab-1.ndjson")

	cl.Log(ConversationLogEvent{UserID: "ana", SessionID: "tab-1", EventType: "tutor_user_message"})
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond, "first event was never written")

	// A rotated-away file is recreated instead of written through a stale handle.
	require.NoError(t, os.Remove(path))
	cl.Log(ConversationLogEvent{UserID: "ana", SessionID: "tab-1", EventType: "tutor_model_message"})
	for i := 0; i < 40; i++ {
		cl.Log(ConversationLogEvent{UserID: "bia", SessionID: fmt.Sprintf("tab-%d", i), EventType: "tutor_user_message"})
	}
	require.NoError(t, cl.Close())

	assert.Equal(t, "tutor_model_message", readSingleEvent(t, path).EventType)
	for i := 0; i < 40; i++ {
		readSingleEvent(t, filepath.Join(dir, "bia", fmt.Sprintf("tab-%d.ndjson", i)))
	}
}

func TestConversationLoggerDisabledIsNoop(t *testing.T) {
	t.Parallel()

	cl, err := NewConversationLogger(ConversationLogConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, noopConversationLogger{}, cl)
	cl.Log(ConversationLogEvent{UserID: "ana"})
	assert.NoError(t, cl.Close())
}

func TestLogAfterCloseIsDropped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cl, err := NewConversationLogger(ConversationLogConfig{Enabled: true, Dir: dir, QueueSize: 1}, nil)
	require.NoError(t, err)
	_ = cl.Close()
	cl.Log(ConversationLogEvent{UserID: "ana", SessionID: "s"})

	time.Sleep(20 * time.Millisecond)
	_, err = os.Stat(filepath.Join(dir, "ana"))
	assert.True(t, os.IsNotExist(err), "expected nothing written after Close, stat err = %v", err)
}

func TestCleanForReadability(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "\x1b[1mnegrito\x1b[0m", want: "negrito"},
		{raw: "linha 1\r\nlinha 2", want: "linha 1\nlinha 2"},
		{raw: "sino\a aqui\t!", want: "sino aqui\t!"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanForReadability(tt.raw), "input %q", tt.raw)
	}
}

func readSingleEvent(t *testing.T, path string) ConversationLogEvent {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1, path)
	var ev ConversationLogEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ev), path)
	return ev
}
