//go:build windows

package main

import (
	"os/exec"
	"unsafe"

	"github.com/vx-run/vx/internal/shimfmt"
	"golang.org/x/sys/windows"
)

// spawnShim runs cmd inside a job object with KILL_ON_JOB_CLOSE so the
// shim taking a SIGKILL-equivalent doesn't orphan the real tool, mirroring
// internal/execpipe's job-object handling for the same reason.
func spawnShim(cmd *exec.Cmd, sh shimfmt.SignalHandling) (int, error) {
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

	waitErr := cmd.Wait()
	if waitErr == nil {
		return 0, nil
	}

	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}

	return 1, waitErr
}
