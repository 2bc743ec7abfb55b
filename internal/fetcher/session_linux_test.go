package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsmatch/internal/config"
)

func requireChrome(t *testing.T) {
	t.Helper()
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no Chrome or Chromium binary on PATH")
}

func sessionPid(s *Session) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

// liveGroupMembers lists non-zombie processes in process group pgid.
func liveGroupMembers(pgid int) []int {
	if errors.Is(syscall.Kill(-pgid, 0), syscall.ESRCH) {
		return nil
	}
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}
	var live []int
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		stat, err := os.ReadFile(filepath.Join("/proc", e.Name(), "stat"))
		if err != nil {
			continue
		}
		// Fields after the command name: state ppid pgrp ...
		rest := string(stat[bytes.LastIndexByte(stat, ')')+1:])
		fields := strings.Fields(rest)
		if len(fields) < 3 || fields[0] == "Z" {
			continue
		}
		if group, err := strconv.Atoi(fields[2]); err == nil && group == pgid {
			live = append(live, pid)
		}
	}
	return live
}

func TestSessionLifecycle(t *testing.T) {
	requireChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><article id="dic_area">렌더링된 기사 본문</article></body></html>`)
	}))
	defer srv.Close()

	cfg := config.Default().Rendering
	cfg.PageLoadTimeout = config.DurationFrom(30 * time.Second)
	cfg.SettleDelay = config.DurationFrom(0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx := context.Background()
	session, err := NewSession(ctx, cfg, logger)
	require.NoError(t, err)
	defer session.Close()
	assert.Equal(t, 1, session.Generation())

	html, err := session.Render(ctx, srv.URL)
	require.NoError(t, err)
	assert.Contains(t, html, "렌더링된 기사 본문")

	require.NoError(t, session.Recreate(ctx))
	assert.Equal(t, 2, session.Generation())

	html, err = session.Render(ctx, srv.URL)
	require.NoError(t, err)
	assert.Contains(t, html, "렌더링된 기사 본문")

	pid := sessionPid(session)
	require.NotZero(t, pid)
	require.NoError(t, session.Close())
	require.NoError(t, session.Close())

	assert.Eventually(t, func() bool {
		return len(liveGroupMembers(pid)) == 0
	}, 10*time.Second, 100*time.Millisecond, "browser process group still alive")

	_, err = session.Render(ctx, srv.URL)
	assert.ErrorIs(t, err, ErrRenderCrash)
}

func TestSessionSurvivesCallerCancellation(t *testing.T) {
	requireChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>ok</p></body></html>`)
	}))
	defer srv.Close()

	cfg := config.Default().Rendering
	cfg.SettleDelay = config.DurationFrom(0)

	launchCtx, cancel := context.WithCancel(context.Background())
	session, err := NewSession(launchCtx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer session.Close()
	cancel()

	html, err := session.Render(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, html, "ok")
}
