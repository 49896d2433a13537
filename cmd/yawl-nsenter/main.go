package main

import (
	"fmt"
	"os"
	"runtime"

	"yawl/internal/cli"
	"yawl/internal/nsenter"
	_errors "yawl/pkg/errors"
)

func init() {
	// Namespace joins, credential changes and the final exec all happen
	// on the main thread
	runtime.LockOSThread()
}

func main() {
	var err error
	if state, ok := os.LookupEnv(nsenter.StateEnv); ok {
		err = cli.Resume(state)
	} else {
		err = cli.Execute()
	}

	if msg := cli.ErrorMessage(err); msg != "" {
		_, _ = fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(_errors.ExitCode(err))
}
