// Package moonraker is a Moonraker JSON-RPC client that exposes a Klipper
// printer as a calibration.Machine. It speaks the websocket wire format
// Fluidd and Mainsail use: JSON-RPC 2.0 requests over /websocket, with
// printer state read through printer.objects.query and motion issued as
// G-code through printer.gcode.script.
package moonraker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/zcal/autoz/pkg/calibration"
)

// Client is a connected Moonraker session. Safe for concurrent use; requests
// are correlated by JSON-RPC id.
type Client struct {
	conn *websocket.Conn
	log  *logrus.Entry

	writeMu sync.Mutex
	nextID  atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]chan rpcResult
	closed    bool
	closeErr  error
}

type rpcResult struct {
	result json.RawMessage
	err    error
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int64  `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	Method  string          `json:"method"`
	ID      *int64          `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("moonraker: rpc error %d: %s", e.Code, e.Message)
}

// Dial connects to a Moonraker instance. addr may be a plain host:port, an
// http(s) URL or a ws(s) URL; the /websocket path is added when missing.
// The connection is verified with a server.info call and refused while
// Klippy is not ready.
func Dial(ctx context.Context, addr string) (*Client, error) {
	wsURL, err := websocketURL(addr)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to connect to moonraker at %s", wsURL)
	}

	c := &Client{
		conn:    conn,
		log:     logrus.WithField("component", "moonraker"),
		pending: make(map[int64]chan rpcResult),
	}
	go c.readLoop()

	var info struct {
		KlippyState string `json:"klippy_state"`
	}
	if err := c.call(ctx, "server.info", nil, &info); err != nil {
		c.Close()
		return nil, err
	}
	if info.KlippyState != "ready" {
		c.Close()
		return nil, fmt.Errorf("moonraker: klippy is %q, not ready", info.KlippyState)
	}
	c.log.WithField("url", wsURL).Debug("connected")
	return c, nil
}

func websocketURL(addr string) (string, error) {
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", pkgerrors.Wrapf(err, "invalid moonraker address %q", addr)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("moonraker: unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/websocket"
	}
	return u.String(), nil
}

// Close tears down the websocket and fails all in-flight calls.
func (c *Client) Close() error {
	err := c.conn.Close()
	c.failPending(fmt.Errorf("moonraker: connection closed"))
	return err
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.failPending(pkgerrors.Wrap(err, "moonraker connection lost"))
			return
		}
		var resp rpcResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			c.log.WithError(err).Warn("undecodable message")
			continue
		}
		if resp.ID == nil {
			// Server notification (notify_status_update and friends);
			// nothing here subscribes.
			continue
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[*resp.ID]
		delete(c.pending, *resp.ID)
		c.pendingMu.Unlock()
		if !ok {
			continue
		}
		if resp.Error != nil {
			ch <- rpcResult{err: resp.Error}
		} else {
			ch <- rpcResult{result: resp.Result}
		}
	}
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeErr = err
	for id, ch := range c.pending {
		ch <- rpcResult{err: err}
		delete(c.pending, id)
	}
}

// call performs one JSON-RPC request and decodes the result into out when
// out is non-nil.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	id := c.nextID.Add(1)
	ch := make(chan rpcResult, 1)

	c.pendingMu.Lock()
	if c.closed {
		err := c.closeErr
		c.pendingMu.Unlock()
		return err
	}
	c.pending[id] = ch
	c.pendingMu.Unlock()

	req := rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: id}
	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return pkgerrors.Wrapf(err, "failed to send %s", method)
	}

	select {
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		if out != nil {
			if err := json.Unmarshal(res.result, out); err != nil {
				return pkgerrors.Wrapf(err, "failed to decode %s result", method)
			}
		}
		return nil
	}
}

// queryObjects wraps printer.objects.query. objects maps object names to the
// attributes wanted, nil for all.
func (c *Client) queryObjects(ctx context.Context, objects map[string]any) (map[string]json.RawMessage, error) {
	var out struct {
		Status map[string]json.RawMessage `json:"status"`
	}
	params := map[string]any{"objects": objects}
	if err := c.call(ctx, "printer.objects.query", params, &out); err != nil {
		return nil, err
	}
	return out.Status, nil
}

// RunGCode executes a G-code script and waits for completion.
func (c *Client) RunGCode(ctx context.Context, script string) error {
	c.log.WithField("script", script).Debug("gcode")
	return c.call(ctx, "printer.gcode.script", map[string]any{"script": script}, nil)
}

// Position implements calibration.Machine via the toolhead object.
func (c *Client) Position(ctx context.Context) (float64, float64, float64, error) {
	status, err := c.queryObjects(ctx, map[string]any{"toolhead": []string{"position"}})
	if err != nil {
		return 0, 0, 0, err
	}
	var th struct {
		Position []float64 `json:"position"`
	}
	if err := json.Unmarshal(status["toolhead"], &th); err != nil {
		return 0, 0, 0, pkgerrors.Wrap(err, "failed to decode toolhead status")
	}
	if len(th.Position) < 3 {
		return 0, 0, 0, fmt.Errorf("moonraker: toolhead position has %d coordinates", len(th.Position))
	}
	return th.Position[0], th.Position[1], th.Position[2], nil
}

// MoveTo implements calibration.Machine as an absolute G1. Klipper wants the
// feedrate in mm/min.
func (c *Client) MoveTo(ctx context.Context, x, y, z, speed float64) error {
	script := fmt.Sprintf("G90\nG1 X%.3f Y%.3f Z%.3f F%.0f", x, y, z, speed*60)
	return c.RunGCode(ctx, script)
}

// ProbeDown implements calibration.Machine: run PROBE, then read the trigger
// height back from the probe object.
func (c *Client) ProbeDown(ctx context.Context) (float64, error) {
	if err := c.RunGCode(ctx, "PROBE"); err != nil {
		if isProbeFailure(err) {
			return 0, &calibration.CalibrationError{
				Code:    calibration.ErrProbeNoTrigger,
				Message: fmt.Sprintf("probe did not trigger: %v", err),
				Err:     err,
			}
		}
		return 0, err
	}
	status, err := c.queryObjects(ctx, map[string]any{"probe": []string{"last_z_result"}})
	if err != nil {
		return 0, err
	}
	var probe struct {
		LastZResult float64 `json:"last_z_result"`
	}
	if err := json.Unmarshal(status["probe"], &probe); err != nil {
		return 0, pkgerrors.Wrap(err, "failed to decode probe status")
	}
	return probe.LastZResult, nil
}

// isProbeFailure recognizes Klipper's probe abort messages surfaced through
// the gcode.script error.
func isProbeFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "probe triggered prior to movement") ||
		strings.Contains(msg, "probe samples exceed") ||
		strings.Contains(msg, "no trigger on probe")
}

// AlignmentState implements calibration.Machine. The leveling object's
// existence comes from printer.objects.list, its applied flag from a query.
func (c *Client) AlignmentState(ctx context.Context) (calibration.AlignmentState, error) {
	var list struct {
		Objects []string `json:"objects"`
	}
	if err := c.call(ctx, "printer.objects.list", nil, &list); err != nil {
		return calibration.AlignmentNotConfigured, err
	}
	leveler := ""
	for _, obj := range list.Objects {
		if obj == "quad_gantry_level" || obj == "z_tilt" {
			leveler = obj
			break
		}
	}
	if leveler == "" {
		return calibration.AlignmentNotConfigured, nil
	}

	status, err := c.queryObjects(ctx, map[string]any{leveler: []string{"applied"}})
	if err != nil {
		return calibration.AlignmentNotConfigured, err
	}
	var lv struct {
		Applied bool `json:"applied"`
	}
	if err := json.Unmarshal(status[leveler], &lv); err != nil {
		return calibration.AlignmentNotConfigured, pkgerrors.Wrapf(err, "failed to decode %s status", leveler)
	}
	if lv.Applied {
		return calibration.AlignmentApplied, nil
	}
	return calibration.AlignmentNotApplied, nil
}

// HomedAxes implements calibration.Machine via toolhead.homed_axes.
func (c *Client) HomedAxes(ctx context.Context) (bool, bool, bool, error) {
	status, err := c.queryObjects(ctx, map[string]any{"toolhead": []string{"homed_axes"}})
	if err != nil {
		return false, false, false, err
	}
	var th struct {
		HomedAxes string `json:"homed_axes"`
	}
	if err := json.Unmarshal(status["toolhead"], &th); err != nil {
		return false, false, false, pkgerrors.Wrap(err, "failed to decode toolhead status")
	}
	axes := strings.ToLower(th.HomedAxes)
	return strings.Contains(axes, "x"), strings.Contains(axes, "y"), strings.Contains(axes, "z"), nil
}

// SetZOffset implements calibration.Machine. The offset is reset to zero
// first so SET_GCODE_OFFSET never stacks onto a previous value.
func (c *Client) SetZOffset(ctx context.Context, offset float64) error {
	if err := c.RunGCode(ctx, "SET_GCODE_OFFSET Z=0"); err != nil {
		return err
	}
	if offset == 0 {
		return nil
	}
	return c.RunGCode(ctx, fmt.Sprintf("SET_GCODE_OFFSET Z=%.3f", offset))
}
