package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"github.com/vburojevic/tabreload/internal/domain"
	"go.uber.org/zap"
)

// DefaultIgnore keeps dependency trees and build output from retriggering
var DefaultIgnore = []string{"**/node_modules/**", "**/.git/**", "**/dist/**"}

// DefaultFilesCommand is the one-shot build used in files mode
var DefaultFilesCommand = []string{"npx", "vite", "build"}

// DefaultDebounce collapses editor save bursts into one build
const DefaultDebounce = 150 * time.Millisecond

const errorTailLines = 20

// FileSource watches source trees and runs a one-shot build per change burst
type FileSource struct {
	Paths    []string
	Ignore   []string
	Debounce time.Duration
	Command  []string
	Dir      string
	Logger   *zap.Logger
	Output   io.Writer
}

type matcher []glob.Glob

func compileIgnore(patterns []string) (matcher, error) {
	m := make(matcher, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		m = append(m, g)
	}
	return m, nil
}

// Match reports whether path or the directory it names is ignored
func (m matcher) Match(path string) bool {
	p := filepath.ToSlash(path)
	for _, g := range m {
		if g.Match(p) || g.Match(p+"/") {
			return true
		}
	}
	return false
}

// Subscribe installs recursive watches. Any failure to watch is
// ErrWatcherSetup.
func (s *FileSource) Subscribe(ctx context.Context) (*Subscription, error) {
	if len(s.Command) == 0 {
		return nil, fmt.Errorf("%w: files mode needs a build command", ErrWatcherSetup)
	}
	if _, err := exec.LookPath(s.Command[0]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherSetup, err)
	}
	ignorePatterns := s.Ignore
	if ignorePatterns == nil {
		ignorePatterns = DefaultIgnore
	}
	ignore, err := compileIgnore(ignorePatterns)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherSetup, err)
	}
	debounce := s.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherSetup, err)
	}
	paths := s.Paths
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err == nil {
			err = addRecursive(watcher, abs, ignore)
		}
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("%w: watch %s: %v", ErrWatcherSetup, p, err)
		}
	}
	logger.Debug("file watcher started", zap.Strings("paths", paths), zap.Strings("ignore", ignorePatterns))

	return run(ctx, func(ctx context.Context, emit emitFunc) error {
		defer watcher.Close()

		timer := time.NewTimer(debounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-watcher.Events:
				if !ok {
					return ErrWatcherExited
				}
				if ignore.Match(ev.Name) || (ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write)) {
					continue
				}
				if ev.Has(fsnotify.Create) {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						if err := addRecursive(watcher, ev.Name, ignore); err != nil {
							logger.Debug("watch new dir", zap.String("path", ev.Name), zap.Error(err))
						}
					}
				}
				logger.Debug("file changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
				timer.Reset(debounce)
			case err, ok := <-watcher.Errors:
				if !ok {
					return ErrWatcherExited
				}
				logger.Debug("file watcher error", zap.Error(err))
			case <-timer.C:
				s.runBuild(ctx, emit, logger)
			}
		}
	}), nil
}

func (s *FileSource) runBuild(ctx context.Context, emit emitFunc, logger *zap.Logger) {
	if !emit(domain.NewBuildEvent(domain.BuildStart, "")) {
		return
	}
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Command[0], s.Command[1:]...)
	cmd.Dir = s.Dir
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if s.Output != nil {
		_, _ = s.Output.Write(out.Bytes())
	}
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		logger.Debug("build failed", zap.Strings("command", s.Command), zap.Error(err))
		emit(domain.NewBuildEvent(domain.BuildError, errorPayload(err, out.String())))
		return
	}
	emit(domain.NewBuildEvent(domain.BuildEnd, ""))
}

func errorPayload(err error, output string) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) > errorTailLines {
		lines = lines[len(lines)-errorTailLines:]
	}
	tail := strings.TrimSpace(strings.Join(lines, "\n"))
	if tail == "" {
		return err.Error()
	}
	return err.Error() + ": " + tail
}

func addRecursive(w *fsnotify.Watcher, root string, ignore matcher) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignore.Match(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
