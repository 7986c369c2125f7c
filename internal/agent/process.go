package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/message"
)

// ProcessConfig wires one subprocess frame.
type ProcessConfig struct {
	// Routine is the name the child resolves in its registry.
	Routine string

	FrameName string
	FrameID   string

	// Shared channels, snapshotted into the child at start. Common
	// updates stream back and land here.
	Environments *message.Board
	Requests     *message.Board
	Commons      *message.Board

	Logger  *slog.Logger
	Publish func(any, error)

	// Executable overrides the re-exec target. Defaults to the current
	// binary.
	Executable string
}

// Process runs a frame's routine in a child process. The parent keeps
// the lifecycle hooks; only the routine crosses the process boundary.
type Process struct {
	cfg ProcessConfig

	mu      sync.Mutex
	started bool
	cmd     *exec.Cmd

	writeMu sync.Mutex
	stdin   io.WriteCloser
	reqBase []message.SnapshotEntry

	publishOnce sync.Once
	done        chan struct{}
}

// NewProcess builds the parallel-realm agent.
func NewProcess(cfg ProcessConfig) *Process {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	return &Process{cfg: cfg, done: make(chan struct{})}
}

// Start snapshots the shared channels, spawns the child and begins
// relaying its output. The second call fails with ErrFrameStarted.
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return domain.ErrFrameStarted
	}

	boot, err := p.makeBootstrap()
	if err != nil {
		return err
	}

	exe := p.cfg.Executable
	if exe == "" {
		exe, err = os.Executable()
		if err != nil {
			return fmt.Errorf("resolve executable: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, exe)
	cmd.Env = append(os.Environ(), RoutineEnv+"="+p.cfg.Routine)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn %q: %w", p.cfg.Routine, err)
	}

	p.started = true
	p.cmd = cmd
	p.stdin = stdin

	if err := p.writeLine(boot); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("bootstrap child: %w", err)
	}

	go p.relay(stdout)
	return nil
}

// makeBootstrap snapshots the shared channels for the child.
func (p *Process) makeBootstrap() (*bootstrap, error) {
	env, err := p.cfg.Environments.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("environment channel: %w", err)
	}
	req, err := p.cfg.Requests.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("request channel: %w", err)
	}
	common, err := p.cfg.Commons.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("common channel: %w", err)
	}
	p.reqBase = req
	return &bootstrap{
		FrameName:    p.cfg.FrameName,
		FrameID:      p.cfg.FrameID,
		Environments: env,
		Requests:     req,
		Commons:      common,
	}, nil
}

// relay consumes the child's stdout until the result line, applies
// common-channel updates as they arrive, and publishes the outcome.
func (p *Process) relay(stdout io.Reader) {
	var (
		value     any
		resultErr error
		sawResult bool
	)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var line wireLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			p.cfg.Logger.Warn("unreadable child line", "frame", p.cfg.FrameName, "err", err)
			continue
		}
		switch line.Type {
		case lineCommon:
			if line.Entry == nil {
				continue
			}
			if err := p.cfg.Commons.ApplyRemote(*line.Entry); err != nil {
				p.cfg.Logger.Warn("common update rejected", "frame", p.cfg.FrameName, "key", line.Entry.Key, "err", err)
			}
		case lineResult:
			sawResult = true
			if line.Error != "" {
				resultErr = errors.New(line.Error)
			} else if len(line.Value) > 0 {
				if err := json.Unmarshal(line.Value, &value); err != nil {
					resultErr = fmt.Errorf("decode child result: %w", err)
				}
			}
		}
	}

	waitErr := p.cmd.Wait()
	if !sawResult {
		if waitErr != nil {
			resultErr = fmt.Errorf("child exited without result: %w", waitErr)
		} else {
			resultErr = errors.New("child exited without result")
		}
	}

	p.publish(value, resultErr)
}

func (p *Process) publish(value any, err error) {
	p.publishOnce.Do(func() {
		p.cfg.Publish(value, err)
		close(p.done)
	})
}

// Cancel asks the child to stop. With force set the child is killed;
// otherwise a stop line is sent and the child cancels its routine
// context.
func (p *Process) Cancel(force bool) error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if force {
		return cmd.Process.Kill()
	}
	return p.writeLine(wireLine{Type: lineStop})
}

// SyncRequests forwards request-channel changes made since the last sync
// (or since start) to the child.
func (p *Process) SyncRequests() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	diff, err := p.cfg.Requests.Changed(p.reqBase)
	if err != nil {
		return err
	}
	for _, se := range diff {
		entry := se
		if err := p.writeLineLocked(wireLine{Type: lineRequest, Entry: &entry}); err != nil {
			return err
		}
	}
	base, err := p.cfg.Requests.Snapshot()
	if err != nil {
		return err
	}
	p.reqBase = base
	return nil
}

// WaitDone blocks until the child's result is published.
func (p *Process) WaitDone(timeout time.Duration) bool {
	return waitDone(p.done, timeout)
}

func (p *Process) writeLine(v any) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.writeLineLocked(v)
}

func (p *Process) writeLineLocked(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = p.stdin.Write(append(raw, '\n'))
	return err
}
