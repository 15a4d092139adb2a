package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hutchhq/nodeup/pkg/log"
	"github.com/hutchhq/nodeup/pkg/metrics"
)

const (
	// DefaultLogRoot is where per-service stderr logs land.
	DefaultLogRoot = "/var/log/nodeup"

	// DefaultCLI is the supervisor control binary.
	DefaultCLI = "svcherd"
)

// ServiceState tracks a registered service through configuration and
// startup.
type ServiceState string

const (
	StateRegistered ServiceState = "registered"
	StateConfigured ServiceState = "configured"
	StateStarted    ServiceState = "started"
)

// Runner executes the supervisor CLI.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

type service struct {
	name         string
	execPath     string
	state        ServiceState
	deps         []string
	args         *ArgMap
	argsReplaced bool
}

// Manager registers agent services with the process supervisor, wires
// their dependencies, arguments, and environment, and starts them.
//
// Dependency metadata handed to the supervisor is declarative, for
// operational tooling; actual start order is driven by the caller's
// explicit Start sequence. Start still refuses to run a service whose
// declared dependencies have not been started, so a mis-sequenced caller
// fails loudly instead of racing.
type Manager struct {
	runner   Runner
	cli      string
	logRoot  string
	services map[string]*service
}

// Config holds manager construction parameters.
type Config struct {
	Runner  Runner // defaults to ExecRunner
	CLI     string // defaults to DefaultCLI
	LogRoot string // defaults to DefaultLogRoot
}

// NewManager creates a service lifecycle manager.
func NewManager(cfg *Config) *Manager {
	m := &Manager{
		runner:   cfg.Runner,
		cli:      cfg.CLI,
		logRoot:  cfg.LogRoot,
		services: make(map[string]*service),
	}
	if m.runner == nil {
		m.runner = ExecRunner{}
	}
	if m.cli == "" {
		m.cli = DefaultCLI
	}
	if m.logRoot == "" {
		m.logRoot = DefaultLogRoot
	}
	return m
}

// Register installs a named service pointing at an executable, with its
// stderr redirected to a per-service log file. Re-registering an already
// known name overwrites the supervisor's record (activate is retried as a
// whole, so registration must be overwrite-idempotent).
func (m *Manager) Register(ctx context.Context, name, execPath string) error {
	logPath := filepath.Join(m.logRoot, name+".log")
	if out, err := m.runner.Run(ctx, m.cli, "install", name, execPath, "--stderr-log", logPath); err != nil {
		return fmt.Errorf("failed to register service %s: %w (output: %s)", name, err, strings.TrimSpace(out))
	}

	m.services[name] = &service{
		name:     name,
		execPath: execPath,
		state:    StateRegistered,
		args:     NewArgMap(),
	}

	logger := log.WithService(name)
	logger.Info().Str("exec", execPath).Msg("service registered")
	return nil
}

// SetDependencies records the service's declared prerequisites with the
// supervisor.
func (m *Manager) SetDependencies(ctx context.Context, name string, deps []string) error {
	svc, err := m.lookup(name)
	if err != nil {
		return err
	}
	if out, err := m.runner.Run(ctx, m.cli, "set-deps", name, strings.Join(deps, ",")); err != nil {
		return fmt.Errorf("failed to set dependencies for %s: %w (output: %s)", name, err, strings.TrimSpace(out))
	}
	svc.deps = append([]string(nil), deps...)
	return nil
}

// SetEnv records one environment override for the service.
func (m *Manager) SetEnv(ctx context.Context, name, key, value string) error {
	if _, err := m.lookup(name); err != nil {
		return err
	}
	if out, err := m.runner.Run(ctx, m.cli, "set-env", name, fmt.Sprintf("%s=%s", key, value)); err != nil {
		return fmt.Errorf("failed to set env for %s: %w (output: %s)", name, err, strings.TrimSpace(out))
	}
	return nil
}

// SetArgs hands the flattened argument string to the supervisor and moves
// the service to Configured.
func (m *Manager) SetArgs(ctx context.Context, name string, args *ArgMap) error {
	svc, err := m.lookup(name)
	if err != nil {
		return err
	}
	if svc.state == StateStarted {
		return fmt.Errorf("service %s already started, arguments are frozen", name)
	}
	if out, err := m.runner.Run(ctx, m.cli, "set-args", name, args.Flatten()); err != nil {
		return fmt.Errorf("failed to set args for %s: %w (output: %s)", name, err, strings.TrimSpace(out))
	}
	svc.args = args
	svc.state = StateConfigured
	return nil
}

// ReplaceArgs swaps a Configured service's arguments exactly once before
// Start. This exists for the one argument whose value is unknowable at
// configuration time: the proxy agent's source virtual IP, discovered only
// after the network backend is running.
func (m *Manager) ReplaceArgs(ctx context.Context, name string, args *ArgMap) error {
	svc, err := m.lookup(name)
	if err != nil {
		return err
	}
	if svc.state != StateConfigured {
		return fmt.Errorf("service %s is %s; arguments can only be replaced while configured", name, svc.state)
	}
	if svc.argsReplaced {
		return fmt.Errorf("service %s arguments were already replaced once", name)
	}
	if out, err := m.runner.Run(ctx, m.cli, "set-args", name, args.Flatten()); err != nil {
		return fmt.Errorf("failed to replace args for %s: %w (output: %s)", name, err, strings.TrimSpace(out))
	}
	svc.args = args
	svc.argsReplaced = true
	return nil
}

// Start starts a Configured service. Calling Start before every declared
// dependency has been started is a sequencing error, never silently
// reordered.
func (m *Manager) Start(ctx context.Context, name string) error {
	svc, err := m.lookup(name)
	if err != nil {
		return err
	}
	if svc.state == StateStarted {
		return fmt.Errorf("service %s already started", name)
	}
	if svc.state != StateConfigured {
		return fmt.Errorf("service %s is %s; configure it before starting", name, svc.state)
	}
	for _, dep := range svc.deps {
		depSvc, ok := m.services[dep]
		if !ok {
			return fmt.Errorf("service %s depends on unregistered service %s", name, dep)
		}
		if depSvc.state != StateStarted {
			return fmt.Errorf("service %s depends on %s which has not been started", name, dep)
		}
	}

	if out, err := m.runner.Run(ctx, m.cli, "start", name); err != nil {
		return fmt.Errorf("failed to start service %s: %w (output: %s)", name, err, strings.TrimSpace(out))
	}
	svc.state = StateStarted
	metrics.ServicesStarted.Inc()

	logger := log.WithService(name)
	logger.Info().Msg("service started")
	return nil
}

// State returns the tracked state of a service.
func (m *Manager) State(name string) (ServiceState, error) {
	svc, err := m.lookup(name)
	if err != nil {
		return "", err
	}
	return svc.state, nil
}

// Args returns the service's current argument map.
func (m *Manager) Args(name string) (*ArgMap, error) {
	svc, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	return svc.args, nil
}

func (m *Manager) lookup(name string) (*service, error) {
	svc, ok := m.services[name]
	if !ok {
		return nil, fmt.Errorf("unknown service: %s", name)
	}
	return svc, nil
}
