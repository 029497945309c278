package simulator

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"sync"

	"sign-scheduler-service/pkg/signwire"
)

// Server accepts sign commands over a Unix socket, one newline-terminated
// command per connection exchange, and answers a single response line.
// If the Unix socket cannot be created it falls back to TCP.
type Server struct {
	log          *log.Logger
	socketPath   string
	fallbackAddr string
	display      *Display
	listener     net.Listener
	mu           sync.Mutex
}

func NewServer(l *log.Logger, socketPath, fallbackAddr string) *Server {
	if socketPath == "" {
		socketPath = signwire.DefaultSocketPath
	}
	if fallbackAddr == "" {
		fallbackAddr = "localhost:9090"
	}
	return &Server{
		log:          l,
		socketPath:   socketPath,
		fallbackAddr: fallbackAddr,
		display:      NewDisplay(),
	}
}

// Display exposes the in-memory display state, mainly for tests and status
// reporting.
func (s *Server) Display() *Display {
	return s.display
}

// Addr returns the address the server is listening on, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) createListener() (net.Listener, error) {
	_ = os.Remove(s.socketPath)
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: s.socketPath, Net: "unix"})
	if err != nil {
		s.log.Println("Error occurred while using unix socket:", err.Error())
		s.log.Println("Trying to use tcp socket")
		tcpListener, tcpErr := net.Listen("tcp", s.fallbackAddr)
		if tcpErr != nil {
			return nil, fmt.Errorf("error listening: %s", tcpErr.Error())
		}
		return tcpListener, nil
	}
	_ = os.Chmod(s.socketPath, 0766)
	return l, nil
}

// Start listens and serves until the context is canceled. Each connection is
// handled in its own goroutine.
func (s *Server) Start(ctx context.Context) error {
	l, err := s.createListener()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	s.log.Println("Sign simulator listening on", l.Addr())

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			s.log.Println("Error accepting:", err.Error())
			continue
		}
		go s.handleConnection(conn)
	}
}

// Shutdown closes the listener and removes the socket file.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.log.Printf("Error closing listener: %v", err)
		}
		s.listener = nil
	}
	_ = os.Remove(s.socketPath)
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		command := strings.TrimRight(scanner.Text(), "\r")
		response := s.handleCommand(command)
		if _, err := conn.Write([]byte(response + "\n")); err != nil {
			s.log.Printf("Error writing response: %v", err)
			return
		}
	}
}

func (s *Server) handleCommand(command string) string {
	switch {
	case command == signwire.CommandClear:
		s.display.Clear()
		s.log.Println("Display cleared.")
		return "OK cleared"
	case strings.HasPrefix(command, "SET"):
		items, err := signwire.ParseSet(command)
		if err != nil {
			s.log.Printf("Rejected command: %v", err)
			return "ERROR: " + err.Error()
		}
		s.display.Apply(items)
		s.log.Printf("Display set with %d item(s).", len(items))
		return fmt.Sprintf("OK displaying %d item(s)", len(items))
	default:
		s.log.Printf("Unknown command: %q", command)
		return "ERROR: unknown command"
	}
}
