package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var ErrPickCancelled = errors.New("device selection cancelled")

// FindDevice returns the first device whose name contains name,
// case-insensitively. An empty name selects the system default (nil).
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	want := strings.ToLower(name)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), want) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no capture device matching %q", name)
}

// PickDevice shows an arrow-key picker on the terminal. With a single device
// it returns that device without prompting.
func PickDevice(ctx Context, out io.Writer) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, fmt.Errorf("%w: no capture devices found", ErrDeviceUnavailable)
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	render := func() {
		fmt.Fprint(out, "\r\x1b[J")
		fmt.Fprint(out, "Select input device (↑/↓, Enter to confirm):\r\n\r\n")
		for i, d := range devices {
			if i == cursor {
				fmt.Fprintf(out, "  \x1b[1;36m▶ %s\x1b[0m\r\n", d.Name)
			} else {
				fmt.Fprintf(out, "    %s\r\n", d.Name)
			}
		}
	}
	render()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		next, done, cancel := pickerKey(buf[:n], cursor, len(devices))
		if cancel {
			fmt.Fprint(out, "\r\n")
			return nil, ErrPickCancelled
		}
		if done {
			fmt.Fprint(out, "\r\n")
			return &devices[cursor], nil
		}
		cursor = next
		fmt.Fprintf(out, "\x1b[%dA", len(devices)+2)
		render()
	}
}

// pickerKey maps one read from a raw terminal to a cursor move.
func pickerKey(key []byte, cursor, n int) (next int, done, cancel bool) {
	next = cursor
	if len(key) == 1 {
		switch key[0] {
		case '\r', '\n':
			return cursor, true, false
		case 3, 'q': // ctrl+c
			return cursor, false, true
		case 'j':
			next++
		case 'k':
			next--
		}
	} else if len(key) == 3 && key[0] == 0x1b && key[1] == '[' {
		switch key[2] {
		case 'A':
			next--
		case 'B':
			next++
		}
	}
	return max(0, min(next, n-1)), false, false
}
