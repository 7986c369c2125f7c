package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/message"
)

// ChildBoards are the channels rebuilt inside a child process. The
// local channel starts empty; it never crosses the boundary.
type ChildBoards struct {
	FrameName string
	FrameID   string

	Environments *message.Board
	Requests     *message.Board
	Commons      *message.Board
	Locals       *message.Board
}

// ChildRoutine is the child-side execution entry point supplied by the
// runtime's registry.
type ChildRoutine func(ctx context.Context, boards *ChildBoards) (any, error)

// ChildMain is the whole life of a subprocess frame: read the bootstrap,
// rebuild the channels, run the named routine, stream common-channel
// changes back and finish with a result line.
//
// Request updates and stop commands keep arriving on stdin while the
// routine runs.
func ChildMain(ctx context.Context, routineName string, stdin io.Reader, stdout io.Writer, logger *slog.Logger, resolve func(string) (ChildRoutine, bool)) error {
	if logger == nil {
		logger = logging.NewNop()
	}

	routine, ok := resolve(routineName)
	if !ok {
		return fmt.Errorf("routine %q: %w", routineName, domain.ErrRoutineNotRegistered)
	}

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	if !scanner.Scan() {
		return fmt.Errorf("no bootstrap on stdin: %w", scanner.Err())
	}
	var boot bootstrap
	if err := json.Unmarshal(scanner.Bytes(), &boot); err != nil {
		return fmt.Errorf("decode bootstrap: %w", err)
	}

	boards, err := rebuildBoards(&boot)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go serveParentLines(scanner, boards, cancel, logger)

	value, routineErr := routine(runCtx, boards)

	out := bufio.NewWriter(stdout)
	if err := flushCommons(out, boards.Commons, boot.Commons); err != nil {
		return err
	}
	if err := writeResult(out, value, routineErr); err != nil {
		return err
	}
	return out.Flush()
}

func rebuildBoards(boot *bootstrap) (*ChildBoards, error) {
	env, err := message.FromSnapshot(boot.Environments)
	if err != nil {
		return nil, fmt.Errorf("environment channel: %w", err)
	}
	req, err := message.FromSnapshot(boot.Requests)
	if err != nil {
		return nil, fmt.Errorf("request channel: %w", err)
	}
	common, err := message.FromSnapshot(boot.Commons)
	if err != nil {
		return nil, fmt.Errorf("common channel: %w", err)
	}
	return &ChildBoards{
		FrameName:    boot.FrameName,
		FrameID:      boot.FrameID,
		Environments: env,
		Requests:     req,
		Commons:      common,
		Locals:       message.NewBoard(),
	}, nil
}

// serveParentLines applies request updates and the stop command while
// the routine runs.
func serveParentLines(scanner *bufio.Scanner, boards *ChildBoards, cancel context.CancelFunc, logger *slog.Logger) {
	for scanner.Scan() {
		var line wireLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			logger.Warn("unreadable parent line", "err", err)
			continue
		}
		switch line.Type {
		case lineRequest:
			if line.Entry == nil {
				continue
			}
			if err := boards.Requests.ApplyRemote(*line.Entry); err != nil {
				logger.Warn("request update rejected", "key", line.Entry.Key, "err", err)
			}
		case lineStop:
			cancel()
		}
	}
}

// flushCommons writes the common-channel changes accumulated during the
// routine.
func flushCommons(w io.Writer, commons *message.Board, base []message.SnapshotEntry) error {
	diff, err := commons.Changed(base)
	if err != nil {
		return err
	}
	for _, se := range diff {
		entry := se
		if err := writeLine(w, wireLine{Type: lineCommon, Entry: &entry}); err != nil {
			return err
		}
	}
	return nil
}

func writeResult(w io.Writer, value any, routineErr error) error {
	line := wireLine{Type: lineResult}
	if routineErr != nil {
		line.Error = routineErr.Error()
	} else if value != nil {
		raw, err := json.Marshal(value)
		if err != nil {
			line.Error = fmt.Sprintf("result not serializable: %v", err)
		} else {
			line.Value = raw
		}
	}
	return writeLine(w, line)
}

func writeLine(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(raw, '\n'))
	return err
}
