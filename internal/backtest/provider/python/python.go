// Package python runs the backtest entry point of a Python module in a
// child interpreter.
package python

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/investeai/internal/backtest"
	"go.uber.org/zap"
)

// runnerScript imports the entry point, calls it with the model path and
// prints its result as one JSON document. Falsy results print null.
const runnerScript = `import importlib, json, sys
fn = getattr(importlib.import_module(sys.argv[1]), sys.argv[2])
res = fn(sys.argv[3])
def conv(o):
    if hasattr(o, "item"):
        return o.item()
    if hasattr(o, "tolist"):
        return o.tolist()
    return str(o)
sys.stdout.write("\n" + json.dumps(res if res else None, default=conv) + "\n")
`

// probeScript fails unless the entry point can be imported and called.
const probeScript = `import importlib, sys
fn = getattr(importlib.import_module(sys.argv[1]), sys.argv[2])
sys.exit(0 if callable(fn) else 3)
`

const probeTimeout = 30 * time.Second

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// Config configures the Python entry point.
type Config struct {
	Bin      string // interpreter; empty auto-detects
	WorkDir  string // directory holding the module
	Module   string
	Function string
}

// Provider invokes a Python function as the backtest entry point.
type Provider struct {
	cfg    Config
	logger *zap.Logger
	lookup func(workDir string) (string, error)
}

// New creates a provider. Nothing is executed until Available or Run.
func New(cfg Config, logger *zap.Logger) (*Provider, error) {
	if !identRe.MatchString(cfg.Module) {
		return nil, fmt.Errorf("invalid python module name %q", cfg.Module)
	}
	if !identRe.MatchString(cfg.Function) || strings.Contains(cfg.Function, ".") {
		return nil, fmt.Errorf("invalid python function name %q", cfg.Function)
	}
	if cfg.WorkDir != "" {
		abs, err := filepath.Abs(cfg.WorkDir)
		if err != nil {
			return nil, fmt.Errorf("resolving workdir: %w", err)
		}
		cfg.WorkDir = abs
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{cfg: cfg, logger: logger, lookup: findInterpreter}, nil
}

// Name returns the dotted entry point name.
func (p *Provider) Name() string {
	return p.cfg.Module + "." + p.cfg.Function
}

// Available checks that an interpreter exists and the entry point imports.
func (p *Provider) Available(ctx context.Context) error {
	bin, err := p.interpreter()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if _, err := p.exec(ctx, bin, probeScript, p.cfg.Module, p.cfg.Function); err != nil {
		return fmt.Errorf("importing %s: %w", p.Name(), err)
	}
	return nil
}

// Run calls the entry point with modelPath and decodes its result.
func (p *Provider) Run(ctx context.Context, modelPath string) (*backtest.ResultsRecord, error) {
	bin, err := p.interpreter()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := p.exec(ctx, bin, runnerScript, p.cfg.Module, p.cfg.Function, modelPath)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("python entry point returned",
		zap.String("entry_point", p.Name()),
		zap.Duration("duration", time.Since(start)),
		zap.Int("bytes", len(out)),
	)

	return decodeOutput(out)
}

// decodeOutput parses the last non-empty stdout line. Anything the entry
// point printed before it is progress chatter.
func decodeOutput(out []byte) (*backtest.ResultsRecord, error) {
	payload := lastLine(out)
	if payload == "" || payload == "null" {
		return nil, nil
	}

	var rec backtest.ResultsRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("parsing entry point output: %w (raw: %s)", err, truncate(payload, 200))
	}
	return &rec, nil
}

func (p *Provider) interpreter() (string, error) {
	if p.cfg.Bin != "" {
		return p.cfg.Bin, nil
	}
	return p.lookup(p.cfg.WorkDir)
}

func (p *Provider) exec(ctx context.Context, bin, script string, args ...string) ([]byte, error) {
	cmdArgs := append([]string{"-c", script}, args...)
	cmd := exec.CommandContext(ctx, bin, cmdArgs...)
	cmd.Dir = p.cfg.WorkDir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("python exited with code %d: %s",
				exitErr.ExitCode(), truncate(lastLine(stderr.Bytes()), 500))
		}
		return nil, fmt.Errorf("running python: %w", err)
	}
	return out, nil
}

// findInterpreter prefers a .venv next to the module, then the system
// python3 / python.
func findInterpreter(workDir string) (string, error) {
	var candidates []string
	if workDir != "" {
		candidates = append(candidates,
			filepath.Join(workDir, ".venv", "bin", "python3"),
			filepath.Join(workDir, ".venv", "bin", "python"),
		)
	}
	for _, name := range []string{"python3", "python"} {
		if p, err := exec.LookPath(name); err == nil {
			candidates = append(candidates, p)
		}
	}

	for _, c := range candidates {
		if err := exec.Command(c, "--version").Run(); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("no usable Python interpreter found (checked .venv and system PATH)")
}

func lastLine(b []byte) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
