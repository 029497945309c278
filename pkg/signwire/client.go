package signwire

import (
	"bufio"
	"net"
	"time"
)

const (
	// DefaultSocketPath is where the sign daemon listens.
	DefaultSocketPath = "/tmp/ledsign.sock"

	defaultTimeout = 5 * time.Second
)

// Client talks to the sign daemon over its local stream socket. Each Send
// opens a fresh connection, so a Client is safe for concurrent use.
//
// Failures at this boundary are reported as ERROR response strings, never as
// Go errors: the scheduler treats an unreachable sign as a diagnostic, not a
// fault that should propagate.
type Client struct {
	network string
	addr    string
	timeout time.Duration
}

// NewClient returns a client for the Unix socket at socketPath.
func NewClient(socketPath string) *Client {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &Client{network: "unix", addr: socketPath, timeout: defaultTimeout}
}

// NewTCPClient returns a client that dials a TCP address instead of the Unix
// socket, for use with a simulator running in fallback mode.
func NewTCPClient(addr string) *Client {
	return &Client{network: "tcp", addr: addr, timeout: defaultTimeout}
}

// Send transmits one newline-terminated command and reads the single-line
// response. The returned string is either the sign's response or an
// "ERROR: ..." diagnostic when the channel itself failed.
func (c *Client) Send(command string) string {
	conn, err := net.DialTimeout(c.network, c.addr, c.timeout)
	if err != nil {
		return "ERROR: sign server not reachable: " + err.Error()
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return "ERROR: " + err.Error()
	}
	if _, err := conn.Write([]byte(command + "\n")); err != nil {
		return "ERROR: write failed: " + err.Error()
	}

	response, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && response == "" {
		return "ERROR: read failed: " + err.Error()
	}
	return trimLine(response)
}

func trimLine(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
