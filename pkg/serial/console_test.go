package serial

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/zcal/autoz/pkg/calibration"
)

// scriptedPort feeds canned console responses and records what was written.
type scriptedPort struct {
	mu        sync.Mutex
	responses []string // one full response (possibly multi-line) per command
	written   []string
	pending   string
	closed    bool
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, strings.TrimRight(string(b), "\n"))
	if len(p.responses) > 0 {
		p.pending += p.responses[0]
		p.responses = p.responses[1:]
	} else {
		p.pending += "ok\n"
	}
	return len(b), nil
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == "" {
		if p.closed {
			return 0, io.EOF
		}
		// The console only reads after a write in these tests.
		return 0, io.EOF
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *scriptedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func newScripted(responses ...string) (*Console, *scriptedPort) {
	p := &scriptedPort{responses: responses}
	return NewConsole(p), p
}

func TestRunCollectsInfoUntilOk(t *testing.T) {
	c, p := newScripted("// line one\n// line two\nok\n")
	info, err := c.Run(context.Background(), "STATUS")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(info) != 2 || info[0] != "line one" || info[1] != "line two" {
		t.Errorf("info = %v", info)
	}
	if len(p.written) != 1 || p.written[0] != "STATUS" {
		t.Errorf("written = %v", p.written)
	}
}

func TestRunSurfacesPrinterError(t *testing.T) {
	c, _ := newScripted("!! Must home axis first: z\nok\n")
	_, err := c.Run(context.Background(), "G1 Z10")
	if err == nil || !strings.Contains(err.Error(), "Must home axis first") {
		t.Fatalf("Run error = %v, want printer error", err)
	}
}

func TestPositionParsesM114(t *testing.T) {
	c, _ := newScripted("// X:85.000 Y:55.000 Z:10.000 E:0.000\nok\n")
	x, y, z, err := c.Position(context.Background())
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if x != 85 || y != 55 || z != 10 {
		t.Errorf("position = %v,%v,%v, want 85,55,10", x, y, z)
	}
}

func TestPositionParsesBareM114(t *testing.T) {
	// Some firmwares answer M114 without the "// " prefix.
	c, _ := newScripted("X:1.500 Y:2.000 Z:0.300 E:0.000\nok\n")
	x, y, z, err := c.Position(context.Background())
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if x != 1.5 || y != 2 || z != 0.3 {
		t.Errorf("position = %v,%v,%v", x, y, z)
	}
}

func TestProbeDownParsesResult(t *testing.T) {
	c, _ := newScripted("// probe at 85.000,55.000 is z=-0.425000\n// Result is z=-0.425000\nok\n")
	h, err := c.ProbeDown(context.Background())
	if err != nil {
		t.Fatalf("ProbeDown: %v", err)
	}
	if h != -0.425 {
		t.Errorf("trigger height = %v, want -0.425", h)
	}
}

func TestProbeDownMapsFailure(t *testing.T) {
	c, _ := newScripted("!! No trigger on probe after full movement\nok\n")
	_, err := c.ProbeDown(context.Background())
	if !calibration.IsCode(err, calibration.ErrProbeNoTrigger) {
		t.Fatalf("error = %v, want PROBE_NO_TRIGGER", err)
	}
}

func TestMoveToSetsAbsoluteMode(t *testing.T) {
	c, p := newScripted()
	if err := c.MoveTo(context.Background(), 85, 55, 10, 50); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	want := []string{"G90", "G1 X85.000 Y55.000 Z10.000 F3000"}
	if len(p.written) != 2 || p.written[0] != want[0] || p.written[1] != want[1] {
		t.Errorf("written = %v, want %v", p.written, want)
	}
}

func TestHomedAxesViaZeroDistanceMove(t *testing.T) {
	// Homed: M114 then G90/G1 all succeed.
	c, _ := newScripted("// X:0.000 Y:0.000 Z:10.000 E:0.000\nok\n", "ok\n", "ok\n")
	hx, hy, hz, err := c.HomedAxes(context.Background())
	if err != nil {
		t.Fatalf("HomedAxes: %v", err)
	}
	if !hx || !hy || !hz {
		t.Errorf("homed = %v,%v,%v, want all true", hx, hy, hz)
	}

	// Unhomed: the G1 is rejected.
	c, _ = newScripted("// X:0.000 Y:0.000 Z:0.000 E:0.000\nok\n", "ok\n", "!! Must home axis first: xyz\nok\n")
	hx, hy, hz, err = c.HomedAxes(context.Background())
	if err != nil {
		t.Fatalf("HomedAxes: %v", err)
	}
	if hx || hy || hz {
		t.Errorf("homed = %v,%v,%v, want all false", hx, hy, hz)
	}
}

func TestSetZOffsetResetsFirst(t *testing.T) {
	c, p := newScripted()
	if err := c.SetZOffset(context.Background(), -0.8); err != nil {
		t.Fatalf("SetZOffset: %v", err)
	}
	want := []string{"SET_GCODE_OFFSET Z=0", "SET_GCODE_OFFSET Z=-0.800"}
	if len(p.written) != 2 || p.written[0] != want[0] || p.written[1] != want[1] {
		t.Errorf("written = %v, want %v", p.written, want)
	}
}

func TestAlignmentStateUnavailable(t *testing.T) {
	c, _ := newScripted()
	state, err := c.AlignmentState(context.Background())
	if err != nil {
		t.Fatalf("AlignmentState: %v", err)
	}
	if state != calibration.AlignmentNotConfigured {
		t.Errorf("state = %v, want not_configured", state)
	}
}
