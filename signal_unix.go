//go:build !windows

package main

import (
	"os"
	"syscall"
)

var (
	reloadSignal os.Signal = syscall.SIGUSR1
	stopSignal   os.Signal = syscall.SIGTERM
)
