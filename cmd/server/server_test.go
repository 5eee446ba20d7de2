package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/miretskiy/mm1sim/simulator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, interval time.Duration, chunks int) (*httptest.Server, chan struct{}) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	reg := prometheus.NewRegistry()
	srv := newServer(log, reg, interval, chunks)
	quit := make(chan struct{}, 1)
	ts := httptest.NewServer(srv.routes(reg, func() { quit <- struct{}{} }))
	t.Cleanup(ts.Close)
	return ts, quit
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var hello ServerMessage
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, "status", hello.Type)
	require.NotNil(t, hello.Running)
	require.False(t, *hello.Running)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	var msg ServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestRunStreamsProgressAndReport(t *testing.T) {
	ts, _ := newTestServer(t, time.Millisecond, 10)
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"run","config":{"arrivalRate":1,"serviceRate":2,"endTime":100,"randomSeed":3}}`)))

	started := readMessage(t, conn)
	require.Equal(t, "status", started.Type)
	require.True(t, *started.Running)
	require.Equal(t, 100.0, started.Config.EndTime)

	var progress []simulator.Snapshot
	var report *simulator.Report
	for report == nil {
		msg := readMessage(t, conn)
		switch msg.Type {
		case "progress":
			progress = append(progress, *msg.Progress)
		case "report":
			report = msg.Report
		default:
			t.Fatalf("unexpected message %+v", msg)
		}
	}

	require.Len(t, progress, 10)
	for i := 1; i < len(progress); i++ {
		require.Greater(t, progress[i].VirtualTime, progress[i-1].VirtualTime)
		require.GreaterOrEqual(t, progress[i].Arrivals, progress[i-1].Arrivals)
	}
	require.InDelta(t, 100.0, progress[len(progress)-1].VirtualTime, 1e-9)

	// Chunked stepping gives the same result as an uninterrupted run
	config := simulator.DefaultConfig()
	config.EndTime = 100
	config.RandomSeed = 3
	sim, err := simulator.NewSimulator(config)
	require.NoError(t, err)
	expected := sim.Run()
	require.Equal(t, expected.Arrivals, report.Arrivals)
	require.Equal(t, expected.Departures, report.Departures)
	require.InDelta(t, expected.Utilization, report.Utilization, 1e-9)

	finished := readMessage(t, conn)
	require.Equal(t, "status", finished.Type)
	require.False(t, *finished.Running)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "mm1_runs_completed_total 1")
	require.Contains(t, string(body), "mm1_theoretical_utilization 0.5")
}

func TestRunRejectsBadConfig(t *testing.T) {
	ts, _ := newTestServer(t, time.Millisecond, 10)
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":   "run",
		"config": map[string]interface{}{"arrivalRate": 5, "serviceRate": 2, "endTime": 10},
	}))
	msg := readMessage(t, conn)
	require.Equal(t, "error", msg.Type)
	require.Contains(t, msg.Error, "unstable system")

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":   "run",
		"config": map[string]interface{}{"normalization": "sideways"},
	}))
	msg = readMessage(t, conn)
	require.Equal(t, "error", msg.Type)
	require.Contains(t, msg.Error, "malformed config")

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "pause"}))
	msg = readMessage(t, conn)
	require.Equal(t, "error", msg.Type)
	require.Contains(t, msg.Error, "unknown command")
}

func TestStopCancelsRun(t *testing.T) {
	ts, _ := newTestServer(t, 5*time.Millisecond, 1000000)
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":   "run",
		"config": map[string]interface{}{"endTime": 1e6, "randomSeed": 1},
	}))
	started := readMessage(t, conn)
	require.True(t, *started.Running)

	first := readMessage(t, conn)
	require.Equal(t, "progress", first.Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "stop"}))
	for {
		msg := readMessage(t, conn)
		require.NotEqual(t, "report", msg.Type)
		if msg.Type == "status" {
			require.False(t, *msg.Running)
			break
		}
	}
}

func TestHomeAndQuit(t *testing.T) {
	ts, quit := newTestServer(t, time.Millisecond, 1)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/quitquitquit")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case <-quit:
	case <-time.After(5 * time.Second):
		t.Fatal("quit was not called")
	}
}
