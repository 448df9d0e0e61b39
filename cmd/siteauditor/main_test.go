package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/analyze":
			var req struct {
				URL string `json:"url"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			if strings.Contains(req.URL, "slow") {
				_, _ = w.Write([]byte(`{"country":"BR","logs":["slow response"]}`))
				return
			}
			_, _ = w.Write([]byte(`{"country":"US","logs":["all good"]}`))
		case "/send-smart-email":
			_, _ = w.Write([]byte(`{"sent":true}`))
		}
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("playback:\n  revealInterval: 1us\n  linePause: 1us\nlogging:\n  level: error\n"), 0o600))

	t.Setenv("SITE_AUDITOR_CONFIG", cfgPath)
	t.Setenv("SITE_AUDITOR_BACKEND_URL", server.URL)
	t.Setenv("SITE_AUDITOR_STORE_DRIVER", "file")
	t.Setenv("SITE_AUDITOR_STORE_PATH", filepath.Join(dir, "data"))
	t.Setenv("SITE_AUDITOR_LOG_LEVEL", "")
	t.Setenv("SITE_AUDITOR_METRICS_ADDR", "")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(nil)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

var recordID = regexp.MustCompile(`record (\S+):`)

func TestCLIAnalyzeHistoryShowSendEmail(t *testing.T) {
	setup(t)

	out, err := run(t, "analyze", "--url", "https://slow.example", "--email", "a@b.com")
	require.NoError(t, err)
	require.Contains(t, out, "> priority HIGH detected\n")
	require.Contains(t, out, "priority=HIGH status=EMAIL_SENT")

	out, err = run(t, "analyze", "--url", "https://fine.example", "--email", "c@d.com")
	require.NoError(t, err)
	require.Contains(t, out, "priority=LOW status=ANALYZED")
	m := recordID.FindStringSubmatch(out)
	require.Len(t, m, 2)
	id := m[1]

	out, err = run(t, "history")
	require.NoError(t, err)
	require.Less(t, strings.Index(out, "BR (1)"), strings.Index(out, "US (1)"))
	require.Contains(t, out, id)

	out, err = run(t, "show", "--id", id)
	require.NoError(t, err)
	require.Contains(t, out, "url:      https://fine.example")
	require.Contains(t, out, "> location detected: US\n> all good\n")

	out, err = run(t, "send-email", "--id", id)
	require.NoError(t, err)
	require.Contains(t, out, "email sent to c@d.com")

	_, err = run(t, "send-email", "--id", id)
	require.ErrorContains(t, err, "already notified")
}

func TestCLIRejectsDuplicateAndMissingInput(t *testing.T) {
	setup(t)

	_, err := run(t, "analyze", "--url", "https://fine.example", "--email", "c@d.com")
	require.NoError(t, err)

	_, err = run(t, "analyze", "--url", "https://fine.example", "--email", "c@d.com")
	require.ErrorContains(t, err, "already analyzed")

	_, err = run(t, "analyze", "--url", "https://other.example")
	require.Error(t, err)
}

func TestCLIEmptyHistory(t *testing.T) {
	setup(t)

	out, err := run(t, "history")
	require.NoError(t, err)
	require.Equal(t, "no sites analyzed yet\n", out)
}
