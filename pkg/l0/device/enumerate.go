package device

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.bug.st/serial/enumerator"
)

// Enumerator lists candidate devices, one line per device. A line starts
// with the device path, followed by a free form description.
type Enumerator interface {
	Enumerate(context.Context) ([]string, error)
}

// EnumerateFunc is func type of Enumerator.
type EnumerateFunc func(context.Context) ([]string, error)

// Enumerate implements Enumerator.
func (f EnumerateFunc) Enumerate(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// StaticEnumerator always returns the same lines.
type StaticEnumerator []string

// Enumerate implements Enumerator.
func (e StaticEnumerator) Enumerate(context.Context) ([]string, error) {
	return append([]string(nil), e...), nil
}

// CommandEnumerator runs an external helper and takes its output lines,
// e.g. a script printing "/dev/ttyACM0 VEX_Robotics_V5_Brain".
type CommandEnumerator struct {
	Path string
	Args []string
}

// Enumerate implements Enumerator.
func (e *CommandEnumerator) Enumerate(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, e.Path, e.Args...).Output()
	if err != nil {
		return nil, fmt.Errorf("enumerate with %s: %w", e.Path, err)
	}
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// USBEnumerator lists USB serial ports known to the OS. Lines are in
// the form "<port> <product> <vid>:<pid>".
type USBEnumerator struct{}

// Enumerate implements Enumerator.
func (USBEnumerator) Enumerate(context.Context) ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(ports))
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s %s:%s", port.Name, port.Product, port.VID, port.PID))
	}
	return lines, nil
}
