package relay

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kome-inc/robocar/pkg/drive"
	"github.com/kome-inc/robocar/pkg/joystick"
	"github.com/kome-inc/robocar/pkg/protocol"
)

func newTestRelay(t *testing.T, cfg Config) *Relay {
	t.Helper()
	r, err := New(cfg, nil)
	require.NoError(t, err)
	return r
}

func serve(t *testing.T, r *Relay, port string) string {
	t.Helper()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	r.RegisterRoutes(app)
	r.RegisterAPIRoutes(app.Group("/api"))

	go app.Listen(":" + port)
	t.Cleanup(func() { app.Shutdown() })
	time.Sleep(100 * time.Millisecond)

	return "ws://localhost:" + port
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func write(t *testing.T, ws *websocket.Conn, mt protocol.MessageType, payload any) {
	t.Helper()
	msg, err := protocol.NewMessage(mt, payload)
	require.NoError(t, err)
	data, err := msg.Bytes()
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
}

// readType reads until a message of type mt arrives.
func readType(t *testing.T, ws *websocket.Conn, mt protocol.MessageType) *protocol.Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(time.Second))
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", mt, err)
		}
		msg, err := protocol.ParseMessage(data)
		require.NoError(t, err)
		if msg.Type == mt {
			return msg
		}
	}
}

func TestNew(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())

	assert.Equal(t, 0, r.RobotCount())
	assert.Equal(t, 0, r.ControllerCount())
	assert.Equal(t, joystick.DefaultRadius, r.Engine().WrapperRadius())
	assert.Empty(t, r.GetRobotInfos())
	assert.Nil(t, r.GetRobot("nonexistent"))
}

func TestNew_InvalidJoystick(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Joystick.Radius = -1
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, joystick.ErrInvalidRadius)

	cfg = DefaultConfig()
	cfg.Joystick.Platform = "gameboy"
	_, err = New(cfg, nil)
	assert.ErrorIs(t, err, joystick.ErrUnknownPlatform)
}

func TestGenerateID(t *testing.T) {
	a, b := generateID(), generateID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestProcess(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())
	e := r.Engine()

	tests := []struct {
		name      string
		touch     protocol.TouchData
		wantType  joystick.SampleType
		wantDrive drive.Power
	}{
		{"start", protocol.TouchData{Phase: protocol.PhaseStart}, joystick.SampleStart, drive.Power{Left: 0, Right: 0}},
		{"forward right", protocol.TouchData{Phase: protocol.PhaseMove, X: 200, Y: 150}, joystick.SampleMove, drive.Power{Left: 0.5, Right: 0.5}},
		{"pivot", protocol.TouchData{Phase: protocol.PhaseMove, X: 150, Y: 250}, joystick.SampleMove, drive.Power{Left: 1, Right: -1}},
		{"end", protocol.TouchData{Phase: protocol.PhaseEnd, X: 10, Y: 10}, joystick.SampleStop, drive.Power{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample, power, err := r.Process(e, tt.touch)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, sample.Type)
			assert.InDelta(t, tt.wantDrive.Left, power.Left, 1e-9)
			assert.InDelta(t, tt.wantDrive.Right, power.Right, 1e-9)
		})
	}

	assert.Equal(t, uint64(len(tests)), r.GetStats().SamplesComputed)
}

func TestProcess_UnknownPhase(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())

	_, power, err := r.Process(r.Engine(), protocol.TouchData{Phase: "hover"})
	assert.ErrorIs(t, err, ErrUnknownPhase)
	assert.True(t, power.IsZero())
	assert.Equal(t, uint64(0), r.GetStats().SamplesComputed)
}

func TestProcess_MaxForce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxForce = 1
	r := newTestRelay(t, cfg)

	// Far outside the wrapper: the sample keeps its raw force, the drive is capped.
	sample, power, err := r.Process(r.Engine(), protocol.TouchData{Phase: protocol.PhaseMove, X: 600, Y: 150})
	require.NoError(t, err)
	assert.InDelta(t, 4.5, sample.Force, 1e-9)
	assert.InDelta(t, 1, power.Left, 1e-9)
	assert.InDelta(t, 1, power.Right, 1e-9)
}

func TestSendToNonexistentRobot(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())

	err := r.SendDrive("nonexistent", drive.Power{Left: 1, Right: 1})
	assert.ErrorIs(t, err, ErrRobotNotConnected)
	assert.Equal(t, uint64(1), r.GetStats().DrivesDropped)

	err = r.SendButton("nonexistent", protocol.ButtonA)
	assert.ErrorIs(t, err, ErrRobotNotConnected)

	err = r.SendButton("nonexistent", "Z")
	assert.ErrorIs(t, err, ErrUnknownButton)
}

func TestRobotConnection(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())
	server := serve(t, r, "18180")

	ws := dial(t, server+"/ws/robot/test-robot")
	time.Sleep(50 * time.Millisecond)

	require.Equal(t, 1, r.RobotCount())
	robot := r.GetRobot("test-robot")
	require.NotNil(t, robot)
	assert.True(t, robot.State().Connected)

	ws.Close()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, r.RobotCount())
}

func TestRobotGeneratedID(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())
	server := serve(t, r, "18181")

	dial(t, server+"/ws/robot")
	time.Sleep(50 * time.Millisecond)

	infos := r.GetRobotInfos()
	require.Len(t, infos, 1)
	assert.NotEmpty(t, infos[0].ID)
}

func TestRobotReconnectReplaces(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())
	server := serve(t, r, "18182")

	first := dial(t, server+"/ws/robot/car")
	time.Sleep(50 * time.Millisecond)
	second := dial(t, server+"/ws/robot/car")
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 1, r.RobotCount())

	// The stale socket is closed by the relay.
	first.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)

	// The new one still receives commands.
	require.NoError(t, r.SendDrive("car", drive.Power{Left: 0.3, Right: 0.3}))
	msg := readType(t, second, protocol.TypeDrive)
	power, err := msg.GetDriveData()
	require.NoError(t, err)
	assert.InDelta(t, 0.3, power.Left, 1e-9)
}

func TestRobotPingPong(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())
	server := serve(t, r, "18183")

	ws := dial(t, server+"/ws/robot/ping-test")
	time.Sleep(50 * time.Millisecond)

	write(t, ws, protocol.TypePing, protocol.PingData{ID: "p1"})
	readType(t, ws, protocol.TypePong)
}

func TestControllerDrivesRobot(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())
	server := serve(t, r, "18184")

	robot := dial(t, server+"/ws/robot/car")
	time.Sleep(50 * time.Millisecond)

	ctrl := dial(t, server+"/ws/controller/car?platform=ios&radius=150")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, r.ControllerCount())

	// The controller learns the robot is online.
	state, err := readType(t, ctrl, protocol.TypeState).GetStateData()
	require.NoError(t, err)
	assert.True(t, state.Connected)

	write(t, ctrl, protocol.TypeTouch, protocol.TouchData{Phase: protocol.PhaseStart, X: 150, Y: 150})
	readType(t, ctrl, protocol.TypeSample)
	readType(t, robot, protocol.TypeDrive)

	// Straight down on screen: rotate in place.
	write(t, ctrl, protocol.TypeTouch, protocol.TouchData{Phase: protocol.PhaseMove, X: 150, Y: 250})
	sample, err := readType(t, ctrl, protocol.TypeSample).GetSampleData()
	require.NoError(t, err)
	assert.Equal(t, joystick.SampleMove, sample.Type)
	assert.InDelta(t, 90, sample.Angle.Degree, 1e-9)
	assert.InDelta(t, 1, sample.Force, 1e-9)

	power, err := readType(t, robot, protocol.TypeDrive).GetDriveData()
	require.NoError(t, err)
	assert.InDelta(t, 1, power.Left, 1e-9)
	assert.InDelta(t, -1, power.Right, 1e-9)

	write(t, ctrl, protocol.TypeTouch, protocol.TouchData{Phase: protocol.PhaseEnd, X: 0, Y: 0})
	power, err = readType(t, robot, protocol.TypeDrive).GetDriveData()
	require.NoError(t, err)
	assert.True(t, power.IsZero())

	time.Sleep(50 * time.Millisecond)
	stats := r.GetStats()
	assert.Equal(t, uint64(3), stats.SamplesComputed)
	assert.Equal(t, uint64(3), stats.DrivesSent)
}

func TestControllerWebPlatform(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())
	server := serve(t, r, "18185")

	ctrl := dial(t, server+"/ws/controller/car?platform=web")
	readType(t, ctrl, protocol.TypeState)

	// Web Y grows upward, so y=250 is above center: 270 degrees.
	write(t, ctrl, protocol.TypeTouch, protocol.TouchData{Phase: protocol.PhaseMove, X: 150, Y: 250})
	sample, err := readType(t, ctrl, protocol.TypeSample).GetSampleData()
	require.NoError(t, err)
	assert.InDelta(t, 270, sample.Angle.Degree, 1e-9)
	assert.InDelta(t, -1, sample.Drive.Left, 1e-9)
	assert.InDelta(t, 1, sample.Drive.Right, 1e-9)
}

func TestControllerSamplesWithoutRobot(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())
	server := serve(t, r, "18186")

	ctrl := dial(t, server+"/ws/controller/offline")
	state, err := readType(t, ctrl, protocol.TypeState).GetStateData()
	require.NoError(t, err)
	assert.False(t, state.Connected)

	write(t, ctrl, protocol.TypeTouch, protocol.TouchData{Phase: protocol.PhaseMove, X: 100, Y: 100})
	readType(t, ctrl, protocol.TypeSample)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, uint64(1), r.GetStats().DrivesDropped)
}

func TestControllerBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Debug = true
	r := newTestRelay(t, cfg)
	server := serve(t, r, "18187")

	for _, query := range []string{"radius=-5", "radius=abc", "platform=gameboy"} {
		ctrl := dial(t, server+"/ws/controller/car?"+query)

		e, err := readType(t, ctrl, protocol.TypeError).GetErrorData()
		require.NoError(t, err, query)
		assert.Equal(t, protocol.CodeBadConfig, e.Code, query)

		_, _, err = ctrl.ReadMessage()
		assert.Error(t, err, "connection should be closed for %s", query)
	}
	assert.Equal(t, 0, r.ControllerCount())
}

func TestControllerBadMessages(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Debug = true
	r := newTestRelay(t, cfg)
	server := serve(t, r, "18188")

	ctrl := dial(t, server+"/ws/controller/car")
	readType(t, ctrl, protocol.TypeState)

	require.NoError(t, ctrl.WriteMessage(websocket.TextMessage, []byte("not json")))
	e, err := readType(t, ctrl, protocol.TypeError).GetErrorData()
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeBadMessage, e.Code)

	write(t, ctrl, protocol.TypeTouch, protocol.TouchData{Phase: "hover", X: 1, Y: 1})
	e, err = readType(t, ctrl, protocol.TypeError).GetErrorData()
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeBadPhase, e.Code)

	write(t, ctrl, protocol.TypeButton, protocol.ButtonData{Name: "Z"})
	e, err = readType(t, ctrl, protocol.TypeError).GetErrorData()
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeBadButton, e.Code)

	write(t, ctrl, protocol.TypeDrive, drive.Power{Left: 1})
	e, err = readType(t, ctrl, protocol.TypeError).GetErrorData()
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeBadMessage, e.Code)
}

func TestControllerDisconnectStopsRobot(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())
	server := serve(t, r, "18189")

	robot := dial(t, server+"/ws/robot/car")
	time.Sleep(50 * time.Millisecond)
	ctrl := dial(t, server+"/ws/controller/car")
	readType(t, ctrl, protocol.TypeState)

	write(t, ctrl, protocol.TypeTouch, protocol.TouchData{Phase: protocol.PhaseStart, X: 150, Y: 150})
	readType(t, robot, protocol.TypeDrive)
	write(t, ctrl, protocol.TypeTouch, protocol.TouchData{Phase: protocol.PhaseMove, X: 150, Y: 50})
	power, err := readType(t, robot, protocol.TypeDrive).GetDriveData()
	require.NoError(t, err)
	assert.False(t, power.IsZero())

	// Finger still down when the app drops.
	ctrl.Close()

	power, err = readType(t, robot, protocol.TypeDrive).GetDriveData()
	require.NoError(t, err)
	assert.True(t, power.IsZero())
}

func TestButtonAndStateFanOut(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())
	server := serve(t, r, "18179")

	robot := dial(t, server+"/ws/robot/car")
	time.Sleep(50 * time.Millisecond)
	ctrl := dial(t, server+"/ws/controller/car")
	readType(t, ctrl, protocol.TypeState)

	write(t, ctrl, protocol.TypeButton, protocol.ButtonData{Name: protocol.ButtonX})
	button, err := readType(t, robot, protocol.TypeButton).GetButtonData()
	require.NoError(t, err)
	assert.Equal(t, protocol.ButtonX, button.Name)

	write(t, robot, protocol.TypeState, protocol.StateData{Battery: 80, Signal: 60, Mode: "drive"})
	state, err := readType(t, ctrl, protocol.TypeState).GetStateData()
	require.NoError(t, err)
	assert.True(t, state.Connected)
	assert.Equal(t, 80, state.Battery)
	assert.Equal(t, 60, state.Signal)

	assert.Equal(t, 80, r.GetRobot("car").State().Battery)

	// Robot going away is announced too.
	robot.Close()
	state, err = readType(t, ctrl, protocol.TypeState).GetStateData()
	require.NoError(t, err)
	assert.False(t, state.Connected)
}

func TestRegisterRoutes(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())
	app := fiber.New()

	// Should not panic
	r.RegisterRoutes(app)
	r.RegisterAPIRoutes(app.Group("/api"))

	// Plain HTTP on a websocket path is refused.
	resp, err := app.Test(httptest.NewRequest("GET", "/ws/robot/x", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func newAPI(r *Relay) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	r.RegisterAPIRoutes(app.Group("/api"))
	return app
}

func TestAPIListRobots(t *testing.T) {
	app := newAPI(newTestRelay(t, DefaultConfig()))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/robots/", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"robots"`)
	assert.Contains(t, string(body), `"count":0`)
}

func TestAPIStats(t *testing.T) {
	app := newAPI(newTestRelay(t, DefaultConfig()))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/robots/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "samples_computed")
}

func TestAPIDriveErrors(t *testing.T) {
	app := newAPI(newTestRelay(t, DefaultConfig()))

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"drive offline", "/api/robots/ghost/drive", `{"left":1,"right":1}`, fiber.StatusNotFound},
		{"drive bad body", "/api/robots/ghost/drive", `{`, fiber.StatusBadRequest},
		{"button offline", "/api/robots/ghost/button", `{"name":"A"}`, fiber.StatusNotFound},
		{"button unknown", "/api/robots/ghost/button", `{"name":"Q"}`, fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestAPIDriveDelivered(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())
	server := serve(t, r, "18178")

	robot := dial(t, server+"/ws/robot/car")
	time.Sleep(50 * time.Millisecond)

	app := newAPI(r)
	req := httptest.NewRequest("POST", "/api/robots/car/drive", strings.NewReader(`{"left":3,"right":-0.5}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	power, err := readType(t, robot, protocol.TypeDrive).GetDriveData()
	require.NoError(t, err)
	assert.InDelta(t, 1, power.Left, 1e-9)
	assert.InDelta(t, -0.5, power.Right, 1e-9)
}

func TestAPICompute(t *testing.T) {
	app := newAPI(newTestRelay(t, DefaultConfig()))

	tests := []struct {
		name      string
		body      string
		status    int
		wantLeft  float64
		wantRight float64
	}{
		{"default move", `{"x":150,"y":50}`, 200, -1, 1},
		{"web flips", `{"x":150,"y":250,"platform":"web"}`, 200, -1, 1},
		{"small radius", `{"x":100,"y":50,"radius":50}`, 200, 1.5, 1.5},
		{"stop", `{"phase":"end","x":1,"y":1}`, 200, 0, 0},
		{"bad phase", `{"phase":"hover"}`, 400, 0, 0},
		{"bad platform", `{"platform":"gameboy"}`, 400, 0, 0},
		{"bad radius", `{"radius":-1}`, 400, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/joystick/compute", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.status != 200 {
				return
			}

			var out ComputeResponse
			require.NoError(t, decode(resp.Body, &out))
			assert.InDelta(t, tt.wantLeft, out.Drive.Left, 1e-9)
			assert.InDelta(t, tt.wantRight, out.Drive.Right, 1e-9)
		})
	}
}

func TestAPIPlatforms(t *testing.T) {
	app := newAPI(newTestRelay(t, DefaultConfig()))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/joystick/platforms", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "android")
	assert.Contains(t, string(body), "web")
}

func TestErrorResponse(t *testing.T) {
	app := fiber.New()
	app.Get("/:kind", func(c *fiber.Ctx) error {
		switch c.Params("kind") {
		case "offline":
			return errorResponse(c, ErrRobotNotConnected)
		case "wrapped":
			return errorResponse(c, errors.Join(errors.New("ctx"), joystick.ErrInvalidRadius))
		default:
			return errorResponse(c, errors.New("boom"))
		}
	})

	for kind, want := range map[string]int{"offline": 404, "wrapped": 400, "other": 500} {
		resp, err := app.Test(httptest.NewRequest("GET", "/"+kind, nil))
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, kind)
	}
}

func decode(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

func TestProcess_HugeTouchStaysFinite(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())

	sample, power, err := r.Process(r.Engine(), protocol.TouchData{Phase: protocol.PhaseMove, X: 1e200, Y: 1e200})
	require.NoError(t, err)
	assert.False(t, math.IsInf(sample.Force, 0))
	assert.InDelta(t, 45, sample.Angle.Degree, 1e-9)

	_, err = protocol.NewSampleMessage(sample, power)
	assert.NoError(t, err)
}

func TestControllerUnencodableSampleStopsRobot(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())
	server := serve(t, r, "18177")

	robot := dial(t, server+"/ws/robot/car")
	time.Sleep(50 * time.Millisecond)
	ctrl := dial(t, server+"/ws/controller/car")
	readType(t, ctrl, protocol.TypeState)

	write(t, ctrl, protocol.TypeTouch, protocol.TouchData{Phase: protocol.PhaseMove, X: 150, Y: 50})
	power, err := readType(t, robot, protocol.TypeDrive).GetDriveData()
	require.NoError(t, err)
	require.False(t, power.IsZero())

	// Far enough out that the distance overflows to +Inf.
	write(t, ctrl, protocol.TypeTouch, protocol.TouchData{Phase: protocol.PhaseMove, X: 1.7e308, Y: 1.7e308})

	e, err := readType(t, ctrl, protocol.TypeError).GetErrorData()
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeBadMessage, e.Code)

	power, err = readType(t, robot, protocol.TypeDrive).GetDriveData()
	require.NoError(t, err)
	assert.True(t, power.IsZero())
}

func TestSendDrive_NonFiniteCountsDrop(t *testing.T) {
	r := newTestRelay(t, DefaultConfig())

	err := r.SendDrive("car", drive.Power{Left: math.Inf(1), Right: math.NaN()})
	assert.Error(t, err)
	assert.Equal(t, uint64(1), r.GetStats().DrivesDropped)
}
