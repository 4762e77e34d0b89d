package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/commandbot/domain/motion"
	"github.com/open-teleop/commandbot/pkg/config"
	customlog "github.com/open-teleop/commandbot/pkg/log"
)

func shellClassifier(t *testing.T, script string, timeout time.Duration) *ExecClassifier {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	c := NewExecClassifier("sh", "unused", timeout, nil)
	c.Args = []string{"-c", script}
	return c
}

func TestExecClassifierReadsStdinAndTrims(t *testing.T) {
	c := shellClassifier(t, `read line; if [ "$line" = "go forward" ]; then printf '  1\n\n'; else echo 9; fi`, time.Second)

	out, err := c.Classify(context.Background(), "go forward")
	require.NoError(t, err)
	assert.Equal(t, "1", out)
}

func TestExecClassifierNonZeroExit(t *testing.T) {
	c := shellClassifier(t, `echo "model not found" >&2; exit 3`, time.Second)

	_, err := c.Classify(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, motion.ErrClassifierFailure))
	assert.Contains(t, err.Error(), "model not found")
}

func TestExecClassifierTimeout(t *testing.T) {
	c := shellClassifier(t, `exec sleep 5`, 50*time.Millisecond)

	start := time.Now()
	_, err := c.Classify(context.Background(), "slow")
	require.Error(t, err)
	assert.True(t, errors.Is(err, motion.ErrClassifierFailure))
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExecClassifierMissingBinary(t *testing.T) {
	c := NewExecClassifier("definitely-not-a-real-binary-xyz", "command_bot", time.Second, nil)

	_, err := c.Classify(context.Background(), "hello")
	assert.True(t, errors.Is(err, motion.ErrClassifierFailure))
}

func chatServer(t *testing.T, status int, content string, gotBody *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		if gotBody != nil {
			_ = json.Unmarshal(body, gotBody)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		resp := map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "command_bot",
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]interface{}{"role": "assistant", "content": content},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIClassifier(t *testing.T) {
	var body map[string]interface{}
	srv := chatServer(t, http.StatusOK, " 3\n", &body)
	defer srv.Close()

	c := NewOpenAIClassifier(srv.URL+"/v1/", "", "command_bot", time.Second, nil)
	out, err := c.Classify(context.Background(), "turn right")
	require.NoError(t, err)
	assert.Equal(t, "3", out)
	assert.Equal(t, "command_bot", body["model"])
}

func TestOpenAIClassifierServerError(t *testing.T) {
	srv := chatServer(t, http.StatusInternalServerError, "", nil)
	defer srv.Close()

	c := NewOpenAIClassifier(srv.URL+"/v1/", "key", "command_bot", time.Second, nil)
	_, err := c.Classify(context.Background(), "turn right")
	require.Error(t, err)
	assert.True(t, errors.Is(err, motion.ErrClassifierFailure))
}

func TestNewSelectsBackend(t *testing.T) {
	logger := customlog.NewNopLogger()

	cfg := config.Default()
	c, err := New(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &ExecClassifier{}, c)

	cfg.Classifier.Backend = config.BackendOpenAI
	c, err = New(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClassifier{}, c)

	cfg.Classifier.Backend = "carrier-pigeon"
	_, err = New(cfg, logger)
	assert.Error(t, err)
}
