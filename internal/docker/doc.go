// Package docker provides Docker Engine API wrappers for containerized
// test-environment execution.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Running an environment's script in a fresh container with the
//     project bind-mounted
//   - Container label management for persisting run metadata (labels are
//     the sole record a kept containerized run leaves behind)
//   - Listing and removing kept run containers
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
