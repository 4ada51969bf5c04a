//go:build windows

package execpipe

import (
	"os"
	"os/exec"
	"os/signal"
	"unsafe"

	"golang.org/x/sys/windows"
)

// spawn runs cmd inside a job object so that a killed vx takes its child
// down with it (KILL_ON_JOB_CLOSE), approximating the process-group
// semantics spawn_unix.go gets from Setpgid.
func spawn(cmd *exec.Cmd) (exitCode int, err error) {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return 1, err
	}
	defer windows.CloseHandle(job)

	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}

	if _, err := windows.SetInformationJobObject(
		job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	); err != nil {
		return 1, err
	}

	if err := cmd.Start(); err != nil {
		return 1, err
	}

	handle, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(cmd.Process.Pid))
	if err == nil {
		_ = windows.AssignProcessToJobObject(job, handle)
		windows.CloseHandle(handle)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	for {
		select {
		case <-sigCh:
			// Ctrl-C is already delivered to the child's console process
			// group by the OS; vx itself just stays alive to reap it.
		case waitErr := <-done:
			if waitErr == nil {
				return 0, nil
			}

			if exitErr, ok := waitErr.(*exec.ExitError); ok {
				return exitErr.ExitCode(), nil
			}

			return 1, waitErr
		}
	}
}
