// Package supervisor implements the process topology. In FORK mode the
// worker runs inside the supervisor process. In CLUSTER mode the supervisor
// re-execs itself once per worker; each child binds the shared port with
// SO_REUSEPORT and the kernel balances connections between them.
//
// A worker that dies only reduces capacity: the supervisor logs the exit and
// keeps the remaining workers serving. Nothing is restarted; restart policy
// belongs to the process manager running the supervisor, not to the
// supervisor itself.
package supervisor

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/andresfernandez89/livestore/internal/logging"
)

const workerEnvMarker = "LIVESTORE_WORKER"

// IsWorker reports whether this process was spawned as a cluster worker.
func IsWorker() bool {
	return os.Getenv(workerEnvMarker) == "1"
}

// Supervisor spawns and tracks cluster workers.
type Supervisor struct {
	workers int
	spawn   func(index int) (*exec.Cmd, error)
}

func New(workers int) *Supervisor {
	return &Supervisor{workers: workers, spawn: reexecSelf}
}

// reexecSelf builds the default worker command: this binary, same arguments,
// marked as a worker through the environment.
func reexecSelf(index int) (*exec.Cmd, error) {
	executable, err := os.Executable()
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(executable, os.Args[1:]...)
	cmd.Env = append(os.Environ(), workerEnvMarker+"=1")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd, nil
}

// Run spawns the configured number of workers and blocks until every child
// has exited. Cancelling the context sends SIGTERM to all children so they
// can shut down gracefully. A worker crash is logged and tolerated; it never
// touches the siblings.
func (s *Supervisor) Run(ctx context.Context) error {
	var group errgroup.Group

	for i := 0; i < s.workers; i++ {
		workerIndex := i
		group.Go(func() error {
			return s.runWorker(ctx, workerIndex)
		})
	}

	return group.Wait()
}

// runWorker supervises one child for its whole life. It returns an error
// only when the child could not be spawned at all; a child that started and
// later crashed resolves to nil so the sibling workers stay up.
func (s *Supervisor) runWorker(ctx context.Context, index int) error {
	cmd, err := s.spawn(index)
	if err != nil {
		slog.Error("failed to spawn worker", "index", index, "error", err)
		return err
	}

	if err := cmd.Start(); err != nil {
		slog.Error("failed to start worker", "index", index, "error", err)
		return err
	}

	logger := logging.WithWorker(cmd.Process.Pid)
	logger.Info("worker started", "index", index)

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case err := <-waitErr:
		if err != nil {
			logger.Warn("worker exited unexpectedly, capacity reduced", "index", index, "error", err)
			return nil
		}
		logger.Info("worker exited cleanly", "index", index)
		return nil
	case <-ctx.Done():
		_ = cmd.Process.Signal(syscall.SIGTERM)
		err := <-waitErr
		logger.Info("worker stopped", "index", index, "error", err)
		return nil
	}
}
