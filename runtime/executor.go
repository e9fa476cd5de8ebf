package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/numlab/numerosity/ipc"
	"github.com/numlab/numerosity/stimulus"
	"github.com/numlab/numerosity/timeline"
)

// DefaultStderrLimit bounds the captured renderer stderr.
const DefaultStderrLimit = 64 * 1024

// DefaultCloseTimeout is how long Close waits for the renderer to exit
// after the close frame before killing it.
const DefaultCloseTimeout = 5 * time.Second

// ProcessConfig configures an external renderer process.
type ProcessConfig struct {
	// Command is the renderer binary.
	Command string
	// Args are passed to the renderer.
	Args []string
	// Env is appended to the inherited environment.
	Env []string
	// SessionID is exported as NUMEROSITY_SESSION_ID.
	SessionID string
	// AssetRoot is exported as NUMEROSITY_ASSET_ROOT (default num-task-imgs).
	AssetRoot string
	// StderrLimit bounds the captured stderr (default 64 KiB).
	StderrLimit int
	// CloseTimeout bounds the wait for a clean exit in Close.
	CloseTimeout time.Duration
}

// ProcessResult describes how the renderer exited.
type ProcessResult struct {
	// ExitCode is the process exit code, -1 when killed by a signal.
	ExitCode int
	// Stderr is the tail of the captured stderr output.
	Stderr []byte
}

// FrontendProcess runs an external renderer and speaks ipc frames over
// its stdin and stdout. It implements timeline.Frontend once started.
type FrontendProcess struct {
	config ProcessConfig
	opts   []ipc.FrontendOption

	cmd        *exec.Cmd
	fe         *ipc.Frontend
	stderr     *tailBuffer
	stderrDone chan struct{}

	waitOnce sync.Once
	result   *ProcessResult
	waitErr  error
}

// NewFrontendProcess creates a renderer process manager.
func NewFrontendProcess(cfg ProcessConfig, opts ...ipc.FrontendOption) *FrontendProcess {
	if cfg.AssetRoot == "" {
		cfg.AssetRoot = stimulus.AssetRoot
	}
	if cfg.StderrLimit <= 0 {
		cfg.StderrLimit = DefaultStderrLimit
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = DefaultCloseTimeout
	}
	return &FrontendProcess{config: cfg, opts: opts}
}

// Start launches the renderer.
func (p *FrontendProcess) Start(ctx context.Context) error {
	if p.config.Command == "" {
		return errors.New("renderer command is required")
	}
	p.cmd = exec.CommandContext(ctx, p.config.Command, p.config.Args...)

	env := append(os.Environ(), p.config.Env...)
	env = append(env, "NUMEROSITY_ASSET_ROOT="+p.config.AssetRoot)
	if p.config.SessionID != "" {
		env = append(env, "NUMEROSITY_SESSION_ID="+p.config.SessionID)
	}
	p.cmd.Env = deduplicateEnv(env)

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start renderer: %w", err)
	}

	p.stderr = newTailBuffer(p.config.StderrLimit)
	p.stderrDone = make(chan struct{})
	go func() {
		defer close(p.stderrDone)
		_, _ = io.Copy(p.stderr, stderr)
	}()

	p.fe = ipc.NewFrontend(stdout, stdin, p.opts...)
	return nil
}

// Show implements timeline.Frontend.
func (p *FrontendProcess) Show(step timeline.Step) error {
	if p.fe == nil {
		return timeline.ErrFrontendClosed
	}
	return p.fe.Show(step)
}

// Events implements timeline.Frontend.
func (p *FrontendProcess) Events() <-chan timeline.Event {
	if p.fe == nil {
		ch := make(chan timeline.Event)
		close(ch)
		return ch
	}
	return p.fe.Events()
}

// Hello returns the renderer's hello frame, if any.
func (p *FrontendProcess) Hello() *ipc.HelloFrame {
	if p.fe == nil {
		return nil
	}
	return p.fe.Hello()
}

// Close sends the close frame, waits for the renderer to exit and kills it
// after CloseTimeout.
func (p *FrontendProcess) Close() error {
	if p.fe == nil {
		return nil
	}
	closeErr := p.fe.Close()

	select {
	case <-p.fe.Done():
	case <-time.After(p.config.CloseTimeout):
		_ = p.Kill()
	}
	_, waitErr := p.Wait()
	return errors.Join(closeErr, waitErr)
}

// Wait waits for the renderer to exit. Stdout and stderr are drained
// first because exec.Cmd.Wait closes the pipes.
func (p *FrontendProcess) Wait() (*ProcessResult, error) {
	if p.cmd == nil {
		return nil, errors.New("renderer not started")
	}
	p.waitOnce.Do(func() {
		<-p.fe.Done()
		<-p.stderrDone

		err := p.cmd.Wait()
		p.result = &ProcessResult{Stderr: p.stderr.Bytes()}
		if err == nil {
			return
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			p.waitErr = fmt.Errorf("renderer wait failed: %w", err)
			return
		}
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			p.result.ExitCode = status.ExitStatus()
		} else {
			p.result.ExitCode = -1
		}
	})
	return p.result, p.waitErr
}

// Kill terminates the renderer process.
func (p *FrontendProcess) Kill() error {
	if p.cmd != nil && p.cmd.Process != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}

var _ timeline.Frontend = (*FrontendProcess)(nil)

// deduplicateEnv keeps the last occurrence of each env var key so values
// appended after os.Environ() win.
func deduplicateEnv(env []string) []string {
	seen := make(map[string]int, len(env))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		seen[key] = i
	}
	result := make([]string, 0, len(seen))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		if seen[key] == i {
			result = append(result, entry)
		}
	}
	return result
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append([]byte(nil), b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf...)
}
