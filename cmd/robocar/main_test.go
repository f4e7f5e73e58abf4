package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kome-inc/robocar/internal/httpc"
	"github.com/kome-inc/robocar/pkg/drive"
	"github.com/kome-inc/robocar/pkg/hub"
	"github.com/kome-inc/robocar/pkg/joystick"
	"github.com/kome-inc/robocar/pkg/protocol"
	"github.com/kome-inc/robocar/pkg/relay"
)

func TestParsePoints(t *testing.T) {
	points, err := parsePoints([]string{"150", "50", "300.5", "0"})
	require.NoError(t, err)
	assert.Equal(t, [][2]float64{{150, 50}, {300.5, 0}}, points)

	_, err = parsePoints([]string{"x", "1"})
	assert.Error(t, err)
	_, err = parsePoints([]string{"1", "y"})
	assert.Error(t, err)
}

func TestCompute(t *testing.T) {
	out, err := compute(joystick.DefaultConfig(), 0, protocol.TouchData{Phase: protocol.PhaseMove, X: 150, Y: 250})
	require.NoError(t, err)
	assert.InDelta(t, 90, out.Sample.Angle.Degree, 1e-9)
	assert.InDelta(t, 1, out.Drive.Left, 1e-9)
	assert.InDelta(t, -1, out.Drive.Right, 1e-9)

	out, err = compute(joystick.DefaultConfig(), 0.5, protocol.TouchData{Phase: protocol.PhaseMove, X: 300, Y: 150})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, out.Sample.Force, 1e-9)
	assert.InDelta(t, 0.5, out.Drive.Left, 1e-9)

	_, err = compute(joystick.Config{Radius: 0}, 0, protocol.TouchData{Phase: protocol.PhaseMove})
	assert.ErrorIs(t, err, joystick.ErrInvalidRadius)

	_, err = compute(joystick.DefaultConfig(), 0, protocol.TouchData{Phase: "tap"})
	assert.ErrorIs(t, err, relay.ErrUnknownPhase)
}

func TestMetrics(t *testing.T) {
	text := metrics(relay.Stats{RobotCount: 2, DrivesSent: 7}, hub.New("telemetry"))

	assert.Contains(t, text, "robocar_robots 2\n")
	assert.Contains(t, text, "robocar_drives_sent 7\n")
	assert.Contains(t, text, "robocar_telemetry_clients 0\n")
}

func TestParsePower(t *testing.T) {
	p, err := parsePower("0.5", "-1")
	require.NoError(t, err)
	assert.Equal(t, drive.Power{Left: 0.5, Right: -1}, p)

	_, err = parsePower("fast", "1")
	assert.Error(t, err)
}

func TestRobotEndpoint(t *testing.T) {
	assert.Equal(t, "http://localhost:5000/api/robots/car-1/drive", robotEndpoint("ws://localhost:5000", "car-1", "drive"))
	assert.Equal(t, "https://relay.example/api/robots/a%2Fb/button", robotEndpoint("wss://relay.example", "a/b", "button"))
}

func TestPostRobot(t *testing.T) {
	rl, err := relay.New(relay.DefaultConfig(), nil)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	rl.RegisterRoutes(app)
	rl.RegisterAPIRoutes(app.Group("/api"))
	go app.Listen(":18390")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18390/ws/robot/car", nil)
	require.NoError(t, err)
	defer ws.Close()
	time.Sleep(50 * time.Millisecond)

	server := "ws://localhost:18390"
	require.NoError(t, postRobot(context.Background(), server, "car", "drive", drive.Power{Left: 0.4, Right: -0.4}))
	require.NoError(t, postRobot(context.Background(), server, "car", "button", protocol.ButtonData{Name: protocol.ButtonA}))

	ws.SetReadDeadline(time.Now().Add(time.Second))
	var got []protocol.MessageType
	for len(got) < 2 {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		msg, err := protocol.ParseMessage(data)
		require.NoError(t, err)
		got = append(got, msg.Type)
	}
	assert.Equal(t, []protocol.MessageType{protocol.TypeDrive, protocol.TypeButton}, got)

	// Offline robots come back as 404.
	err = postRobot(context.Background(), server, "ghost", "drive", drive.Stop)
	var se *httpc.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 404, se.Code)
}
