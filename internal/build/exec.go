package build

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"sync"
	"time"

	"github.com/vburojevic/tabreload/internal/domain"
	"go.uber.org/zap"
)

// Default line patterns match `vite build --watch` (Rollup watcher) output.
const (
	DefaultStartPattern = `(?i)build started`
	DefaultEndPattern   = `(?i)built in \d+`
	DefaultErrorPattern = `(?i)error during build|\[vite\]: Rollup failed|build failed`
)

// DefaultCommand is run when no build command is configured
var DefaultCommand = []string{"npx", "vite", "build", "--watch"}

// Patterns classify watch-mode output lines
type Patterns struct {
	Start *regexp.Regexp
	End   *regexp.Regexp
	Error *regexp.Regexp
}

// CompilePatterns compiles the three classifiers, using defaults for empty
// expressions.
func CompilePatterns(start, end, errPattern string) (Patterns, error) {
	compile := func(name, expr, def string) (*regexp.Regexp, error) {
		if expr == "" {
			expr = def
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern: %w", name, err)
		}
		return re, nil
	}
	var p Patterns
	var err error
	if p.Start, err = compile("start", start, DefaultStartPattern); err != nil {
		return p, err
	}
	if p.End, err = compile("end", end, DefaultEndPattern); err != nil {
		return p, err
	}
	if p.Error, err = compile("error", errPattern, DefaultErrorPattern); err != nil {
		return p, err
	}
	return p, nil
}

// Classify maps one output line to an event kind
func (p Patterns) Classify(line string) (domain.BuildKind, bool) {
	switch {
	case p.Error != nil && p.Error.MatchString(line):
		return domain.BuildError, true
	case p.End != nil && p.End.MatchString(line):
		return domain.BuildEnd, true
	case p.Start != nil && p.Start.MatchString(line):
		return domain.BuildStart, true
	}
	return "", false
}

// maxLineBytes bounds one output line; the rest of a longer line is dropped
const maxLineBytes = 1024 * 1024

// readLines calls send for every line of r until r fails or reaches EOF.
// Lines longer than limit are truncated and reading continues after them.
func readLines(r io.Reader, limit int, logger *zap.Logger, send func(string)) {
	br := bufio.NewReaderSize(r, 64*1024)
	line := make([]byte, 0, 4096)
	dropped := 0
	for {
		chunk, isPrefix, err := br.ReadLine()
		if room := limit - len(line); len(chunk) > room {
			dropped += len(chunk) - room
			chunk = chunk[:room]
		}
		line = append(line, chunk...)
		if err != nil {
			if len(line) > 0 {
				send(string(line))
			}
			if err != io.EOF {
				logger.Debug("build output read failed", zap.Error(err))
			}
			return
		}
		if isPrefix {
			continue
		}
		if dropped > 0 {
			logger.Debug("build output line truncated", zap.Int("kept_bytes", len(line)), zap.Int("dropped_bytes", dropped))
		}
		send(string(line))
		line = line[:0]
		dropped = 0
	}
}

// ExecSource runs a long-lived watch-mode build command and classifies its
// output.
type ExecSource struct {
	Command  []string
	Dir      string
	Env      []string
	Patterns Patterns
	Logger   *zap.Logger

	// Output, when set, receives the raw build output
	Output io.Writer
}

// Subscribe starts the watch process. A missing or unstartable command is
// reported as ErrWatcherSetup.
func (s *ExecSource) Subscribe(ctx context.Context) (*Subscription, error) {
	command := s.Command
	if len(command) == 0 {
		command = DefaultCommand
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	path, err := exec.LookPath(command[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherSetup, err)
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, path, command[1:]...)
	cmd.Dir = s.Dir
	if len(s.Env) > 0 {
		cmd.Env = append(cmd.Environ(), s.Env...)
	}
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = 2 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrWatcherSetup, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrWatcherSetup, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: start %s: %v", ErrWatcherSetup, command[0], err)
	}
	logger.Debug("build watcher started", zap.Strings("command", command), zap.Int("pid", cmd.Process.Pid))

	sub := run(ctx, func(ctx context.Context, emit emitFunc) error {
		defer cancel()

		lines := make(chan string)
		var readers sync.WaitGroup
		for _, r := range []io.Reader{stdout, stderr} {
			readers.Add(1)
			go func(r io.Reader) {
				defer readers.Done()
				readLines(r, maxLineBytes, logger, func(line string) { lines <- line })
			}(r)
		}
		go func() {
			readers.Wait()
			close(lines)
		}()

		for {
			select {
			case <-ctx.Done():
				cancel()
				go func() {
					for range lines {
					}
				}()
				_ = cmd.Wait()
				return nil
			case line, ok := <-lines:
				if !ok {
					err := cmd.Wait()
					logger.Debug("build watcher exited", zap.Error(err))
					if err != nil {
						return fmt.Errorf("%w: %v", ErrWatcherExited, err)
					}
					return ErrWatcherExited
				}
				if s.Output != nil {
					fmt.Fprintln(s.Output, line)
				}
				logger.Debug("build output", zap.String("line", line))
				kind, ok := s.Patterns.Classify(line)
				if !ok {
					continue
				}
				payload := ""
				if kind == domain.BuildError {
					payload = line
				}
				emit(domain.NewBuildEvent(kind, payload))
			}
		}
	})
	return sub, nil
}
