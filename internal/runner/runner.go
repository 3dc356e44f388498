// Package runner executes resolved test environments.
//
// An environment run consists of an optional dependency install step
// followed by the environment's commands, executed in order with
// fail-fast semantics. Environments run either directly on the host
// (default) or inside a Docker container when container mode is enabled
// and the environment declares an image.
//
// The runner reports outcomes as model.EnvResult values; it never calls
// os.Exit or prints to stdout itself. Progress goes through the injected
// logrus logger.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mmr-tortoise/envrunner/internal/config"
	"github.com/mmr-tortoise/envrunner/internal/deps"
	"github.com/mmr-tortoise/envrunner/internal/docker"
	"github.com/mmr-tortoise/envrunner/internal/model"
)

// workspaceDirName is the directory created under the project root to
// hold per-environment workspaces (logs, scratch space). It is excluded
// from style checking by default.
const workspaceDirName = ".envrunner"

// defaultInstaller is the command prefix used to install the dependency
// file when the user settings do not override it. The dependency file
// path is appended as the final argument.
const defaultInstaller = "pip install -r"

// Options control how the runner executes environments.
type Options struct {
	// Container runs environments in Docker containers. Environments
	// without a configured image fall back to host execution with a
	// warning, unless DefaultImage is set.
	Container bool

	// DefaultImage is used in container mode for environments that do
	// not declare an image of their own. Empty means no fallback image.
	DefaultImage string

	// Keep leaves run containers in place after the run so they appear
	// in "list" and can be inspected. Only meaningful in container mode.
	Keep bool

	// Parallel is the maximum number of environments executed
	// concurrently. Values below 2 mean sequential execution.
	Parallel int

	// Installer is the command prefix for installing the dependency
	// file. Defaults to "pip install -r".
	Installer string
}

// Runner executes test environments for one project.
type Runner struct {
	project *config.Project
	opts    Options
	log     *logrus.Logger

	// newDockerClient is swapped out in tests. Production code always
	// uses docker.NewClient.
	newDockerClient func() (*docker.Client, error)
}

// New creates a Runner for the given project.
func New(project *config.Project, opts Options, log *logrus.Logger) *Runner {
	if opts.Installer == "" {
		opts.Installer = defaultInstaller
	}
	if log == nil {
		log = logrus.New()
	}
	return &Runner{
		project:         project,
		opts:            opts,
		log:             log,
		newDockerClient: docker.NewClient,
	}
}

// Run executes the given environments and returns one result per
// environment, in input order. Environment failures are reported in the
// results, not as an error; the error return covers only conditions that
// prevent running at all (e.g., Docker unreachable in container mode).
func (r *Runner) Run(ctx context.Context, envs []*config.Environment) ([]*model.EnvResult, error) {
	var cli *docker.Client
	if r.opts.Container {
		c, err := r.newDockerClient()
		if err != nil {
			return nil, err
		}
		defer func() { _ = c.Close() }()

		if err := c.Ping(ctx); err != nil {
			return nil, err
		}
		cli = c
	}

	results := make([]*model.EnvResult, len(envs))

	if r.opts.Parallel > 1 && len(envs) > 1 {
		// Parallel fan-out with a concurrency limit. Each environment
		// writes only its own slot, so no extra synchronization is
		// needed around the results slice.
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.opts.Parallel)

		for i, env := range envs {
			g.Go(func() error {
				results[i] = r.runOne(gctx, cli, env)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return results, nil
	}

	for i, env := range envs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results[i] = r.runOne(ctx, cli, env)
	}
	return results, nil
}

// runOne executes a single environment and converts every possible
// outcome into an EnvResult. A failing environment never aborts the
// overall run.
func (r *Runner) runOne(ctx context.Context, cli *docker.Client, env *config.Environment) *model.EnvResult {
	startedAt := time.Now().UTC()
	result := &model.EnvResult{
		Name:      env.Name,
		Status:    model.StatusRunning,
		StartedAt: startedAt,
	}

	log := r.log.WithField("env", env.Name)
	log.Info("starting environment")

	commands := r.commandsFor(env)
	installCmd, err := r.installCommand(env, log)
	if err != nil {
		result.Status = model.StatusError
		result.Reason = err.Error()
		result.Duration = time.Since(startedAt)
		return result
	}

	containerized := r.opts.Container && r.imageFor(env) != ""
	if r.opts.Container && !containerized {
		log.Warn("environment has no image, falling back to host execution")
	}
	result.Containerized = containerized

	if containerized {
		r.runInContainer(ctx, cli, env, installCmd, commands, result, log)
	} else {
		r.runOnHost(ctx, env, installCmd, commands, result, log)
	}

	result.Duration = time.Since(startedAt)
	log.WithFields(logrus.Fields{
		"status":   result.Status,
		"duration": result.Duration.Round(time.Millisecond),
	}).Info("environment finished")
	return result
}

// commandsFor returns the effective command list for an environment.
// The style environment may declare no commands, in which case the
// checker invocation is synthesized from the style configuration.
func (r *Runner) commandsFor(env *config.Environment) []string {
	if len(env.Settings.Commands) > 0 {
		return env.Settings.Commands
	}

	styleCfg := r.project.StyleConfig()
	if env.Name == styleCfg.EnvironmentName() {
		return []string{styleCfg.CommandLine()}
	}
	return nil
}

// installCommand builds the dependency install command for an
// environment, or "" when it has no dependency file. The file is parsed
// up front so malformed dependency files fail the environment before any
// command runs.
func (r *Runner) installCommand(env *config.Environment, log *logrus.Entry) (string, error) {
	if env.Requirements == "" {
		return "", nil
	}

	reqs, err := deps.ParseFile(env.Requirements)
	if err != nil {
		return "", fmt.Errorf("dependency file is invalid: %w", err)
	}
	if len(reqs) == 0 {
		log.WithField("file", env.Requirements).Debug("dependency file declares nothing, skipping install step")
		return "", nil
	}

	log.WithFields(logrus.Fields{
		"file":  env.Requirements,
		"count": len(reqs),
	}).Debug("installing dependencies")

	return fmt.Sprintf("%s %s", r.opts.Installer, env.Requirements), nil
}

// envWorkspace creates and returns the per-environment workspace
// directory under the project root.
func (r *Runner) envWorkspace(env *config.Environment) (string, error) {
	dir := filepath.Join(r.project.Dir, workspaceDirName, env.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create workspace directory: %w", err)
	}
	return dir, nil
}

// imageFor returns the container image for an environment: its own image
// if declared, otherwise the configured fallback image.
func (r *Runner) imageFor(env *config.Environment) string {
	if env.Settings.Image != "" {
		return env.Settings.Image
	}
	return r.opts.DefaultImage
}
