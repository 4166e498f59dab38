package app

import (
	"bufio"
	"bytes"
	"os"
	"strconv"
	"strings"
)

// DebuggerAttached reports whether a tracer such as dlv or gdb is attached to
// this process. Only Linux exposes this cheaply; elsewhere it reports false.
func DebuggerAttached() bool {
	b, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return false
	}
	return tracerPID(b) != 0
}

// tracerPID extracts the TracerPid field from /proc/<pid>/status content.
func tracerPID(status []byte) int {
	sc := bufio.NewScanner(bytes.NewReader(status))
	for sc.Scan() {
		name, value, ok := strings.Cut(sc.Text(), ":")
		if !ok || name != "TracerPid" {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0
		}
		return pid
	}
	return 0
}
