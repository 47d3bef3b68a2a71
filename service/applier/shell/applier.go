// Package shell provides an applier that executes the change's apply
// command in a local shell session. The command comes from the proposal's
// context payload under the "apply_command" key.
package shell

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"

	"github.com/trust-arbor/arbor/consensus"
	"github.com/trust-arbor/arbor/internal/clock"
	"github.com/trust-arbor/arbor/service/applier"
)

// CommandKey is the proposal context key holding the shell command to run.
const CommandKey = "apply_command"

// Config holds configuration for the shell applier.
type Config struct {
	// Timeout bounds a single apply command.
	Timeout time.Duration
	// Env is exported into the shell session.
	Env map[string]string
}

// DefaultConfig returns the default shell applier configuration.
func DefaultConfig() Config {
	return Config{Timeout: time.Minute}
}

// Applier runs apply commands through a lazily created local shell session.
type Applier struct {
	config  Config
	mu      sync.Mutex
	service *gosh.Service
}

// New creates a shell applier.
func New(config Config) *Applier {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Applier{config: config}
}

// Apply runs the proposal's apply command and reports its outcome. A
// non-zero exit status is a failed result, not an error - the decision to
// apply was already rendered and recorded.
func (a *Applier) Apply(ctx context.Context, proposal *consensus.Proposal) (*applier.Result, error) {
	command, ok := proposal.Context[CommandKey].(string)
	if !ok || strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("proposal %s has no %s in context", proposal.ID, CommandKey)
	}
	session, err := a.session(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open shell session: %w", err)
	}
	stdout, status, err := session.Run(ctx, command, runner.WithTimeout(int(a.config.Timeout.Milliseconds())))
	ret := &applier.Result{
		Status:    applier.StatusOK,
		Output:    strings.TrimSpace(stdout),
		AppliedAt: clock.Now(),
	}
	if err != nil {
		return nil, fmt.Errorf("apply command failed: %w", err)
	}
	if status != 0 {
		ret.Status = applier.StatusFailed
		ret.Output = fmt.Sprintf("exit status %d: %s", status, ret.Output)
	}
	return ret, nil
}

func (a *Applier) session(ctx context.Context) (*gosh.Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.service != nil {
		return a.service, nil
	}
	var options []runner.Option
	if len(a.config.Env) > 0 {
		options = append(options, runner.WithEnvironment(a.config.Env))
	}
	service, err := gosh.New(ctx, local.New(options...))
	if err != nil {
		return nil, err
	}
	a.service = service
	return service, nil
}

var _ applier.Service = (*Applier)(nil)
