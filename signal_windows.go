//go:build windows

package main

import "os"

var (
	reloadSignal os.Signal
	stopSignal   os.Signal = os.Kill
)
