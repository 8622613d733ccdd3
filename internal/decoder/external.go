package decoder

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gltf-export-service/internal/models"
)

var ErrExternalProcessTimeout = errors.New("external decoder timed out")

const (
	InputPlaceholder  = "{input}"
	OutputPlaceholder = "{output}"

	DefaultTimeout = 2 * time.Minute
)

// ExternalDecoder runs a producer process (for example a rhino3dm script)
// that writes the JSON interchange form of the input into a private output
// directory. The producer must write to a temporary name and rename the
// finished file to *.json; the first such file is taken as the result.
type ExternalDecoder struct {
	Command string
	// Args may contain {input} (absolute input path) and {output} (the
	// output directory).
	Args    []string
	Timeout time.Duration
	Log     *zap.Logger
}

func (d *ExternalDecoder) Decode(ctx context.Context, path string) (*models.SourceDocument, error) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	input, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve input path")
	}
	outDir, err := os.MkdirTemp("", "decode-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create output directory")
	}
	defer os.RemoveAll(outDir)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create watcher")
	}
	defer watcher.Close()
	if err := watcher.Add(outDir); err != nil {
		return nil, errors.Wrap(err, "failed to watch output directory")
	}

	procCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(procCtx, d.Command, expandArgs(d.Args, input, outDir)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", d.Command)
	}
	log.Debug("external decoder started",
		zap.String("command", d.Command),
		zap.String("input", input),
		zap.Int("pid", cmd.Process.Pid))

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()
	reaped := false
	defer func() {
		if !reaped {
			cancel()
			<-exited
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	events, errs := watcher.Events, watcher.Errors
	var output string
	for output == "" {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil, errors.New("output watcher closed")
			}
			if (ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)) && isOutput(ev.Name) {
				if _, err := os.Stat(ev.Name); err == nil {
					output = ev.Name
				}
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return nil, errors.Wrap(err, "output watcher failed")
		case err := <-exited:
			reaped = true
			if err != nil {
				return nil, errors.Wrapf(err, "%s failed: %s", d.Command, strings.TrimSpace(stderr.String()))
			}
			found, err := findOutput(outDir)
			if err != nil {
				return nil, err
			}
			if found == "" {
				return nil, errors.Errorf("%s exited without producing output", d.Command)
			}
			output = found
		case <-timer.C:
			log.Warn("external decoder timed out",
				zap.String("command", d.Command),
				zap.String("input", input),
				zap.Duration("timeout", timeout))
			return nil, errors.Wrapf(ErrExternalProcessTimeout, "after %s", timeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	log.Debug("external decoder produced output", zap.String("output", output))
	return JSONDecoder{}.Decode(ctx, output)
}

func expandArgs(args []string, input, output string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		a = strings.ReplaceAll(a, InputPlaceholder, input)
		out[i] = strings.ReplaceAll(a, OutputPlaceholder, output)
	}
	return out
}

func isOutput(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".json")
}

func findOutput(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrap(err, "failed to read output directory")
	}
	for _, e := range entries {
		if !e.IsDir() && isOutput(e.Name()) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", nil
}
