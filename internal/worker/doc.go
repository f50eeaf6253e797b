// Package worker runs bot instances as companion daemon processes.
//
// Each instance is one child process started in its own process group with
// arguments rendered from templates. Its output is forwarded line by line to
// the botherd log under an "Instance/<alias>" subsystem. Stopping an instance
// terminates the whole group: SIGTERM first, SIGKILL once the stop timeout
// expires.
//
// A start only succeeds once the process has survived the start grace
// period. A process exiting earlier is reported as a failed start together
// with the tail of its output.
package worker
