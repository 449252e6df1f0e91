// Package serial drives a printer's G-code console over a serial port (for
// example Klipper's /tmp/printer pty) and exposes it as a
// calibration.Machine. The console protocol is line oriented: one command
// out, then "// " info lines until a final "ok" or a "!! " error line.
//
// A bare console cannot report gantry leveling state, so AlignmentState
// always answers not-configured; use the Moonraker transport or set
// ignore_alignment when calibrating over serial.
package serial

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/zcal/autoz/pkg/calibration"
)

// Console is a G-code console session. One command runs at a time.
type Console struct {
	mu   sync.Mutex
	conn io.ReadWriteCloser
	rd   *bufio.Reader
	log  *logrus.Entry
}

// Open connects to a serial device.
func Open(device string, baud int) (*Console, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open serial port %s", device)
	}
	return NewConsole(port), nil
}

// OpenTCP connects to a TCP-bridged console (ser2net and similar), sharing
// the code path with real serial ports.
func OpenTCP(addr string, timeout time.Duration) (*Console, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to connect to %s", addr)
	}
	return NewConsole(conn), nil
}

// NewConsole wraps an already-open connection.
func NewConsole(conn io.ReadWriteCloser) *Console {
	return &Console{
		conn: conn,
		rd:   bufio.NewReader(conn),
		log:  logrus.WithField("component", "serial"),
	}
}

// Close closes the underlying connection.
func (c *Console) Close() error {
	return c.conn.Close()
}

// ListPorts names the serial ports present on this host.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list serial ports")
	}
	return ports, nil
}

// Run sends one command and collects the console's "// " info lines until
// the final ok. A "!! " line fails the command with the printer's message.
func (c *Console) Run(ctx context.Context, command string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.log.WithField("command", command).Debug("send")
	if _, err := io.WriteString(c.conn, command+"\n"); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to send %q", command)
	}

	// The printer acknowledges every command with "ok", errors included,
	// so the error is held until the ack to keep the stream in sync.
	var info []string
	var cmdErr error
	for {
		line, err := c.rd.ReadString('\n')
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "connection lost waiting for %q", command)
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "ok" || strings.HasPrefix(line, "ok "):
			return info, cmdErr
		case strings.HasPrefix(line, "!! "):
			if cmdErr == nil {
				cmdErr = fmt.Errorf("printer: %s", strings.TrimPrefix(line, "!! "))
			}
		case strings.HasPrefix(line, "// "):
			info = append(info, strings.TrimPrefix(line, "// "))
		case line == "":
			// keepalive blank line
		default:
			info = append(info, line)
		}
	}
}

// Position implements calibration.Machine via M114.
func (c *Console) Position(ctx context.Context) (float64, float64, float64, error) {
	info, err := c.Run(ctx, "M114")
	if err != nil {
		return 0, 0, 0, err
	}
	for _, line := range info {
		x, xok := parseAxisWord(line, "X:")
		y, yok := parseAxisWord(line, "Y:")
		z, zok := parseAxisWord(line, "Z:")
		if xok && yok && zok {
			return x, y, z, nil
		}
	}
	return 0, 0, 0, fmt.Errorf("serial: no position in M114 response %q", info)
}

// parseAxisWord extracts the float following word (e.g. "Z:") in line.
func parseAxisWord(line, word string) (float64, bool) {
	idx := strings.Index(line, word)
	if idx < 0 {
		return 0, false
	}
	rest := line[idx+len(word):]
	end := strings.IndexByte(rest, ' ')
	if end < 0 {
		end = len(rest)
	}
	v, err := strconv.ParseFloat(rest[:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// MoveTo implements calibration.Machine as an absolute G1 with the feedrate
// in mm/min.
func (c *Console) MoveTo(ctx context.Context, x, y, z, speed float64) error {
	if _, err := c.Run(ctx, "G90"); err != nil {
		return err
	}
	_, err := c.Run(ctx, fmt.Sprintf("G1 X%.3f Y%.3f Z%.3f F%.0f", x, y, z, speed*60))
	return err
}

// ProbeDown implements calibration.Machine. Klipper's PROBE reports the
// trigger as "// Result is z=<height>".
func (c *Console) ProbeDown(ctx context.Context) (float64, error) {
	info, err := c.Run(ctx, "PROBE")
	if err != nil {
		return 0, &calibration.CalibrationError{
			Code:    calibration.ErrProbeNoTrigger,
			Message: fmt.Sprintf("probe failed: %v", err),
			Err:     err,
		}
	}
	for _, line := range info {
		if idx := strings.Index(line, "Result is z="); idx >= 0 {
			v, perr := strconv.ParseFloat(strings.TrimSpace(line[idx+len("Result is z="):]), 64)
			if perr != nil {
				return 0, pkgerrors.Wrapf(perr, "unparseable probe result %q", line)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("serial: no probe result in %q", info)
}

// AlignmentState implements calibration.Machine. The console has no way to
// ask whether leveling ran.
func (c *Console) AlignmentState(ctx context.Context) (calibration.AlignmentState, error) {
	return calibration.AlignmentNotConfigured, nil
}

// HomedAxes implements calibration.Machine. The console offers no direct
// query, so a zero-distance absolute move probes the state: Klipper rejects
// it with "Must home axis first" while any axis is unhomed.
func (c *Console) HomedAxes(ctx context.Context) (bool, bool, bool, error) {
	x, y, z, err := c.Position(ctx)
	if err != nil {
		return false, false, false, err
	}
	if err := c.MoveTo(ctx, x, y, z, 25); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "must home") {
			return false, false, false, nil
		}
		return false, false, false, err
	}
	return true, true, true, nil
}

// SetZOffset implements calibration.Machine with the reset-then-set pair so
// offsets never stack.
func (c *Console) SetZOffset(ctx context.Context, offset float64) error {
	if _, err := c.Run(ctx, "SET_GCODE_OFFSET Z=0"); err != nil {
		return err
	}
	if offset == 0 {
		return nil
	}
	_, err := c.Run(ctx, fmt.Sprintf("SET_GCODE_OFFSET Z=%.3f", offset))
	return err
}
