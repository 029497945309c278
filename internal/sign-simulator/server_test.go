package simulator

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sign-scheduler-service/pkg/signwire"
)

func startTestServer(t *testing.T) (*Server, *signwire.Client, context.CancelFunc) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "sign_test.sock")
	srv := NewServer(log.New(io.Discard, "", 0), socketPath, "localhost:0")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := srv.Start(ctx); err != nil {
			t.Logf("server stopped: %v", err)
		}
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "socket file never appeared")

	return srv, signwire.NewClient(socketPath), cancel
}

func TestServerHandlesSetCommand(t *testing.T) {
	srv, client, cancel := startTestServer(t)
	defer cancel()

	command := signwire.EncodeSet([]signwire.Item{
		{Kind: signwire.KindStatic, Text: "HI", X: 0, Y: 10, Color: [3]int{255, 0, 0}},
		{Kind: signwire.KindScroll, Text: "NEWS", X: 0, Y: 20, Color: [3]int{0, 255, 0}, Speed: 40},
	})
	response := client.Send(command)
	assert.Equal(t, "OK displaying 2 item(s)", response)

	items := srv.Display().Snapshot()
	assert.Len(t, items, 2)
	assert.Equal(t, "HI", items[0].Text)
	assert.Equal(t, signwire.KindScroll, items[1].Kind)
	assert.Equal(t, 40, items[1].Speed)
}

func TestServerHandlesClearCommand(t *testing.T) {
	srv, client, cancel := startTestServer(t)
	defer cancel()

	client.Send(signwire.EncodeSet([]signwire.Item{
		{Kind: signwire.KindStatic, Text: "HI", X: 0, Y: 0, Color: [3]int{1, 2, 3}},
	}))
	assert.Len(t, srv.Display().Snapshot(), 1)

	response := client.Send(signwire.CommandClear)
	assert.Equal(t, "OK cleared", response)
	assert.Empty(t, srv.Display().Snapshot())
}

func TestServerRejectsMalformedCommands(t *testing.T) {
	srv, client, cancel := startTestServer(t)
	defer cancel()

	testCases := []string{
		"BOGUS",
		"SETSTATIC;HI;0;10;(255,0,0);",       // missing END
		"SETSTATIC;HI;zero;10;(255,0,0);END;", // non-numeric x
		"SETSTATIC;HI;0;10;(300,0,0);END;",    // color out of range
	}
	for _, command := range testCases {
		t.Run(command, func(t *testing.T) {
			response := client.Send(command)
			assert.True(t, signwire.IsErrorResponse(response), "expected error for %q, got %q", command, response)
		})
	}
	assert.Empty(t, srv.Display().Snapshot())
}

func TestServerSurvivesManySequentialClients(t *testing.T) {
	srv, client, cancel := startTestServer(t)
	defer cancel()

	for i := 0; i < 10; i++ {
		command := signwire.EncodeSet([]signwire.Item{
			{Kind: signwire.KindStatic, Text: fmt.Sprintf("MSG%d", i), X: 0, Y: 0, Color: [3]int{0, 0, 255}},
		})
		assert.Equal(t, "OK displaying 1 item(s)", client.Send(command))
	}

	items := srv.Display().Snapshot()
	assert.Len(t, items, 1)
	assert.Equal(t, "MSG9", items[0].Text)
}

func TestServerShutdownRemovesSocket(t *testing.T) {
	srv, _, cancel := startTestServer(t)
	socketPath := srv.socketPath

	cancel()
	assert.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}
