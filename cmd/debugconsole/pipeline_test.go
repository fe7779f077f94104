package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tinytelemetry/debugconsole/internal/console"
	"github.com/tinytelemetry/debugconsole/internal/duckdb"
	"github.com/tinytelemetry/debugconsole/internal/httpserver"
	"github.com/tinytelemetry/debugconsole/internal/ingest"
	"github.com/tinytelemetry/debugconsole/internal/severity"
)

// TestPipeline_TCPToConsoleAndArchive drives lines over TCP through the
// multiplexer and processor into the hub, and checks both the live console
// over HTTP and the archive.
func TestPipeline_TCPToConsoleAndArchive(t *testing.T) {
	logger := zap.NewNop()

	archive, err := duckdb.NewStore(filepath.Join(t.TempDir(), "console.duckdb"))
	require.NoError(t, err)
	defer archive.Close()

	insert := duckdb.NewInsertBuffer(archive, duckdb.InsertBufferConfig{
		BatchSize:     16,
		FlushInterval: 20 * time.Millisecond,
	})
	defer insert.Stop()

	store := console.NewStore(severity.NewRegistry(severity.AllVisible), console.Config{MaximumEntries: 100, Collapse: true})
	hub := console.NewHub(store, console.HubConfig{Logger: logger})
	require.NoError(t, hub.OnAccepted(insert.Add))

	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan error, 1)
	go func() { hubDone <- hub.Run(ctx) }()

	plugin := tcpInputPlugin{addr: "127.0.0.1:0", enabled: true, logger: logger}
	src, err := plugin.Build(ctx)
	require.NoError(t, err)

	mux := NewSourceMultiplexer(ctx, []NamedLogSource{src}, 64, logger)
	mux.Start()

	proc, err := ingest.NewEnvelopeProcessor(ingest.ProcessorModeParse, hub, "")
	require.NoError(t, err)
	pumpDone := make(chan error, 1)
	go func() { pumpDone <- pumpEnvelopes(ctx, mux.Lines(), proc, 10*time.Millisecond) }()

	api := httpserver.NewServer("127.0.0.1:0", hub, httpserver.Config{Archive: archive, Logger: logger})
	require.NoError(t, api.Start())
	defer api.Stop()

	defer func() {
		cancel()
		mux.Stop()
		<-pumpDone
		<-hubDone
	}()

	conn, err := net.Dial("tcp", src.(interface{ Addr() string }).Addr())
	require.NoError(t, err)
	for range 3 {
		fmt.Fprintln(conn, `{"level":"error","message":"shader compile failed"}`)
	}
	fmt.Fprintln(conn, `{"level":"info","message":"level loaded"}`)
	require.NoError(t, conn.Close())

	var snap struct {
		Rows []struct {
			Label    string `json:"label"`
			Count    int    `json:"count"`
			Severity string `json:"severity"`
		} `json:"rows"`
		Total int `json:"total"`
	}
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + api.Addr() + "/api/entries")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return false
		}
		return snap.Total == 4
	}, 3*time.Second, 20*time.Millisecond)

	require.Len(t, snap.Rows, 2)
	assert.Equal(t, "shader compile failed", snap.Rows[0].Label)
	assert.Equal(t, 3, snap.Rows[0].Count)
	assert.Equal(t, severity.NameError, snap.Rows[0].Severity)
	assert.Equal(t, "level loaded", snap.Rows[1].Label)

	require.Eventually(t, func() bool {
		n, err := archive.TotalHistoryCount()
		return err == nil && n == 4
	}, 3*time.Second, 20*time.Millisecond)

	top, err := archive.TopFingerprints(1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "shader compile failed", top[0].Label)
	assert.EqualValues(t, 3, top[0].Count)
}
