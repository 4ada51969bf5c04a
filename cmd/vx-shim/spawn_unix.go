//go:build unix

package main

import (
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/vx-run/vx/internal/shimfmt"
)

func spawnShim(cmd *exec.Cmd, sh shimfmt.SignalHandling) (int, error) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return 1, err
	}

	var sigCh chan os.Signal

	if sh.ForwardSignals {
		sigCh = make(chan os.Signal, 1)

		sigs := []os.Signal{syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT}
		if !sh.IgnoreSigint {
			sigs = append(sigs, syscall.SIGINT)
		}

		signal.Notify(sigCh, sigs...)
		defer signal.Stop(sigCh)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	for {
		select {
		case sig := <-sigCh:
			_ = syscall.Kill(-cmd.Process.Pid, sig.(syscall.Signal))
		case waitErr := <-done:
			if sh.KillOnExit {
				_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}

			return exitCode(waitErr)
		}
	}
}

func exitCode(waitErr error) (int, error) {
	if waitErr == nil {
		return 0, nil
	}

	exitErr, ok := waitErr.(*exec.ExitError)
	if !ok {
		return 1, waitErr
	}

	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return exitErr.ExitCode(), nil
	}

	if status.Signaled() {
		return 128 + int(status.Signal()), nil
	}

	return status.ExitStatus(), nil
}
