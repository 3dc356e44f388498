// run.go implements containerized test-environment execution.
//
// Each environment run in container mode maps to exactly one container:
// the environment's install step and commands are joined into a single
// "sh -e" script so a failing command aborts the rest, mirroring the
// host-mode fail-fast behavior. The project directory is bind-mounted at
// a fixed workspace path and the container carries envrunner labels so
// past runs can be listed from Docker state alone.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/mmr-tortoise/envrunner/internal/model"
)

// WorkspacePath is the fixed mount point of the project directory inside
// environment containers. Commands execute with this as their working
// directory.
const WorkspacePath = "/workspace"

// RunSpec describes one containerized environment run.
type RunSpec struct {
	// EnvName is the test environment name, used for labels and the
	// container name.
	EnvName string

	// Image is the container image to run the environment in.
	Image string

	// ProjectDir is the absolute host path of the project, bind-mounted
	// at WorkspacePath.
	ProjectDir string

	// Script is the full "sh -e" script: install step plus commands.
	Script string

	// Env holds KEY=VALUE environment variables for the container.
	Env []string

	// Keep prevents the container from being removed after the run,
	// leaving it available for inspection and for "list".
	Keep bool
}

// RunResult is the outcome of a containerized run.
type RunResult struct {
	// ContainerID is the ID of the container that executed the run.
	ContainerID string

	// ExitStatus is the exit status of the environment script.
	ExitStatus int

	// Output is the combined stdout and stderr of the script.
	Output string
}

// EnsureImage makes sure the image is available locally, pulling it when
// missing. Returns a CLIError with ExitDockerNotRunning when the daemon
// is unreachable; plain errors indicate the image itself is unavailable
// (which skip_missing treats as a skip).
func EnsureImage(ctx context.Context, cli *Client, ref string) error {
	// A locally present image needs no pull; inspect is cheap.
	_, err := cli.Inner().ImageInspect(ctx, ref)
	if err == nil {
		return nil
	}

	reader, err := cli.Inner().ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("image %q is not available: %w", ref, err)
	}
	defer reader.Close()

	// The pull response must be drained for the pull to complete; the
	// progress JSON itself is not interesting here.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull image %q: %w", ref, err)
	}
	return nil
}

// RunEnv executes one environment run in a fresh container and returns
// its exit status and combined output. The container is removed after
// the run unless spec.Keep is set.
func RunEnv(ctx context.Context, cli *Client, spec RunSpec) (*RunResult, error) {
	startedAt := time.Now()
	labels := BuildLabels(spec.EnvName, spec.ProjectDir, startedAt)

	containerName := fmt.Sprintf("envrunner-%s-%d", spec.EnvName, startedAt.Unix())

	created, err := cli.Inner().ContainerCreate(ctx,
		&container.Config{
			Image:      spec.Image,
			Cmd:        []string{"/bin/sh", "-ec", spec.Script},
			WorkingDir: WorkspacePath,
			Env:        spec.Env,
			Labels:     labels,
		},
		&container.HostConfig{
			Mounts: []mount.Mount{{
				Type:   mount.TypeBind,
				Source: spec.ProjectDir,
				Target: WorkspacePath,
			}},
		},
		nil, nil, containerName,
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create container for environment %q", spec.EnvName),
			err,
		)
	}

	if err := cli.Inner().ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start container for environment %q", spec.EnvName),
			err,
		)
	}

	// Wait for the script to finish. WaitConditionNotRunning resolves
	// when the container's main process exits.
	waitCh, errCh := cli.Inner().ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)

	var exitStatus int
	select {
	case resp := <-waitCh:
		exitStatus = int(resp.StatusCode)
	case err := <-errCh:
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed while waiting for environment %q", spec.EnvName),
			err,
		)
	case <-ctx.Done():
		// Cancellation: best-effort stop so the container does not keep
		// running after the CLI exits.
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = cli.Inner().ContainerStop(stopCtx, created.ID, container.StopOptions{})
		return nil, ctx.Err()
	}

	output, err := containerOutput(ctx, cli, created.ID)
	if err != nil {
		return nil, err
	}

	if !spec.Keep {
		if err := cli.Inner().ContainerRemove(ctx, created.ID, container.RemoveOptions{}); err != nil {
			return nil, model.WrapCLIError(
				model.ExitDockerNotRunning,
				fmt.Sprintf("failed to remove container %q", created.ID),
				err,
			)
		}
	}

	return &RunResult{
		ContainerID: created.ID,
		ExitStatus:  exitStatus,
		Output:      output,
	}, nil
}

// containerOutput fetches the combined stdout and stderr of an exited
// container. Docker multiplexes both streams into one connection, so
// stdcopy demultiplexes them; here they are merged back in order into a
// single buffer, matching host-mode CombinedOutput behavior.
func containerOutput(ctx context.Context, cli *Client, containerID string) (string, error) {
	reader, err := cli.Inner().ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to read logs of container %q", containerID),
			err,
		)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, reader); err != nil {
		return "", fmt.Errorf("failed to demultiplex container logs: %w", err)
	}
	return buf.String(), nil
}

// ListRuns queries the Docker daemon for all kept environment-run
// containers (those with the envrunner managed-by label), including
// exited ones, and reconstructs their run records from labels.
//
// Containers with malformed labels are skipped rather than failing the
// whole listing.
func ListRuns(ctx context.Context, cli *Client) ([]RunRecord, error) {
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	records := make([]RunRecord, 0, len(containers))
	for _, c := range containers {
		record, err := ParseLabels(c.Labels)
		if err != nil {
			continue
		}
		record.ContainerID = c.ID
		// Terminal status comes from the container state, not the label
		// written at launch: an exited container's label still says
		// "running". The exit code lives in the inspect response; an
		// uninspectable exited container reads as errored.
		if c.State != "running" {
			record.Status = model.StatusError
			if inspect, err := cli.Inner().ContainerInspect(ctx, c.ID); err == nil && inspect.State != nil {
				record.Status = terminalStatus(inspect.State.ExitCode)
			}
		}
		records = append(records, *record)
	}

	return records, nil
}

// RemoveRuns deletes all kept environment-run containers. When force is
// true, running containers are killed first. Returns the number of
// removed containers.
func RemoveRuns(ctx context.Context, cli *Client, force bool) (int, error) {
	records, err := ListRuns(ctx, cli)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, record := range records {
		err := cli.Inner().ContainerRemove(ctx, record.ContainerID, container.RemoveOptions{
			Force: force,
		})
		if err != nil {
			return removed, model.WrapCLIError(
				model.ExitDockerNotRunning,
				fmt.Sprintf("failed to remove container %q", record.ContainerID),
				err,
			)
		}
		removed++
	}
	return removed, nil
}

// terminalStatus maps an exited container's exit code to the terminal
// run status. The environment script runs under "sh -e", so a zero exit
// code means every command passed.
func terminalStatus(exitCode int) model.EnvStatus {
	if exitCode == 0 {
		return model.StatusPassed
	}
	return model.StatusFailed
}
