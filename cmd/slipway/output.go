// Copyright (C) 2026 Slipway Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

// Exit codes for CLI commands.
const (
	CLIExitSuccess = 0 // Operation completed successfully
	CLIExitFailure = 1 // Operation failed or was rolled back
)

const (
	ansiGreen  = "\033[32m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiReset  = "\033[0m"
)

// useColor reports whether stdout is an interactive terminal.
func useColor() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func colorize(color, s string) string {
	if !useColor() {
		return s
	}
	return color + s + ansiReset
}

// printSuccess writes a green success line to stdout.
func printSuccess(format string, args ...any) {
	fmt.Println(colorize(ansiGreen, fmt.Sprintf(format, args...)))
}

// printFailure writes a red failure line to stdout.
func printFailure(format string, args ...any) {
	fmt.Println(colorize(ansiRed, fmt.Sprintf(format, args...)))
}

// printWarning writes a yellow warning line to stdout.
func printWarning(format string, args ...any) {
	fmt.Println(colorize(ansiYellow, fmt.Sprintf(format, args...)))
}

// printInfo writes an uncolored line to stdout.
func printInfo(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}
