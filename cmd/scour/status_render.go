package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"scour/internal/store"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

func jobStatusColor(status store.JobStatus) string {
	switch status {
	case store.JobCompleted:
		return ansiGreen
	case store.JobRunning:
		return ansiBlue
	case store.JobInterrupted:
		return ansiYellow
	case store.JobError:
		return ansiRed
	default:
		return ""
	}
}

func colorizeStatus(status store.JobStatus, colorize bool) string {
	if !colorize {
		return string(status)
	}
	color := jobStatusColor(status)
	if color == "" {
		return string(status)
	}
	return color + string(status) + ansiReset
}

func renderField(label, value string) string {
	return fmt.Sprintf("  %-12s %s", label+":", value)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
