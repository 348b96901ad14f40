// Package supervisor manages the locally-spawned gemini_bridge helper
// process (an npx-installed Anthropic-compatible proxy in front of
// Gemini), mirroring the lifecycle of the original Antigravity launcher:
// locate an npx binary, spawn it detached with PORT set in its
// environment, poll its /health endpoint for up to 15 seconds, and on
// shutdown terminate it gracefully before killing it outright.
package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/howard-nolan/claude-gateway/internal/config"
)

const (
	healthPollInterval = time.Second
	healthPollAttempts = 15
	terminateGrace     = 5 * time.Second
)

// npxCandidates lists the locations the launcher tries, in order, mirroring
// the original script's Windows/Unix candidate list.
func npxCandidates() []string {
	candidates := []string{"npx"}
	if runtime.GOOS == "windows" {
		candidates = append(candidates,
			"npx.cmd",
			`C:\Program Files\nodejs\npx.cmd`,
		)
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, "AppData", "Roaming", "npm", "npx.cmd"))
		}
	}
	return candidates
}

// Supervisor owns the lifecycle of the gemini_bridge subprocess.
type Supervisor struct {
	cfg    config.SubprocessConfig
	logger *zap.Logger
	client *http.Client

	cmd *exec.Cmd
}

// New returns a Supervisor for the given gemini_bridge configuration.
func New(cfg config.SubprocessConfig, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "supervisor")),
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

// Start locates an npx binary, spawns the gemini_bridge helper detached
// with PORT set to the configured port, and polls its health endpoint for
// up to 15 seconds. Start is a no-op, returning nil, when the backend is
// disabled in configuration. A failure to find npx or a crash during
// startup is logged but never returned as an error — the gateway keeps
// serving, and since routing checks only the Enabled flag, requests routed
// to gemini_bridge then fail at the upstream call.
func (s *Supervisor) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info("gemini_bridge disabled, skipping startup")
		return nil
	}

	npxPath, err := findNpx(ctx)
	if err != nil {
		s.logger.Error("could not locate npx, gemini_bridge will not start", zap.Error(err))
		return nil
	}
	s.logger.Info("found npx", zap.String("path", npxPath))

	cmd := exec.Command(npxPath, "antigravity-claude-proxy@latest", "start")
	cmd.Env = append(os.Environ(), fmt.Sprintf("PORT=%d", s.cfg.Port))
	setDetached(cmd)

	if err := cmd.Start(); err != nil {
		s.logger.Error("failed to start gemini_bridge", zap.Error(err))
		return nil
	}
	s.cmd = cmd
	s.logger.Info("gemini_bridge process started", zap.Int("pid", cmd.Process.Pid), zap.Int("port", s.cfg.Port))

	if s.waitHealthy(ctx) {
		s.logger.Info("gemini_bridge is healthy", zap.Int("port", s.cfg.Port))
	} else {
		s.logger.Warn("gemini_bridge process running but not responding to health checks",
			zap.Int("port", s.cfg.Port))
	}
	return nil
}

func (s *Supervisor) waitHealthy(ctx context.Context) bool {
	url := fmt.Sprintf("http://localhost:%d/health", s.cfg.Port)
	for attempt := 0; attempt < healthPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(healthPollInterval):
		}

		if s.cmd.ProcessState != nil {
			s.logger.Error("gemini_bridge process exited during startup")
			return false
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		resp, err := s.client.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return true
		}
	}
	return false
}

// Stop terminates the gemini_bridge process, giving it a grace period to
// exit cleanly before force-killing it. Stop is a no-op if Start was never
// called or never produced a running process.
func (s *Supervisor) Stop() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	s.logger.Info("stopping gemini_bridge")

	if err := terminate(s.cmd); err != nil {
		s.logger.Warn("terminate failed, killing process", zap.Error(err))
		_ = s.cmd.Process.Kill()
		return
	}

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case <-done:
		s.logger.Info("gemini_bridge stopped")
	case <-time.After(terminateGrace):
		s.logger.Warn("gemini_bridge did not exit in time, killing")
		_ = s.cmd.Process.Kill()
		<-done
	}
	s.cmd = nil
}

func findNpx(ctx context.Context) (string, error) {
	for _, candidate := range npxCandidates() {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		cmd := exec.CommandContext(checkCtx, candidate, "--version")
		err := cmd.Run()
		cancel()
		if err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no npx binary found among candidates")
}
