// Package singleinstance makes one resident process the owner of the desktop.
// The resident binds a loopback port; later processes find it there.
package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	residentHost  = "127.0.0.1"
	pingRequest   = "PING\n"
	pongResponse  = "PONG\n"
	infoRequest   = "INFO\n"
	infoResponse  = "INFO\n"
	DefaultPort   = 49600
	clientTimeout = 300 * time.Millisecond
)

var ErrAlreadyRunning = errors.New("another autopilot instance owns the desktop")

// Server answers PING with PONG and INFO with the resident's HTTP address.
type Server struct {
	lis  net.Listener
	port int
	info string

	closeOnce sync.Once
}

// Acquire binds the loopback port. If a resident already answers there it
// returns ErrAlreadyRunning.
func Acquire(ctx context.Context, port int, info string) (*Server, error) {
	addr := net.JoinHostPort(residentHost, fmt.Sprint(port))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		if Detect(ctx, port) {
			return nil, ErrAlreadyRunning
		}
		log.Printf("singleinstance: failed to bind %s: %v", addr, err)
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	s := &Server{lis: lis, port: port, info: info}
	log.Printf("singleinstance: listening on %s", addr)
	go s.acceptLoop()
	return s, nil
}

// Port returns the bound port.
func (s *Server) Port() int { return s.port }

func (s *Server) acceptLoop() {
	for {
		c, err := s.lis.Accept()
		if err != nil {
			return
		}
		go s.serve(c)
	}
}

func (s *Server) serve(c net.Conn) {
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(3 * time.Second))
	line, _ := bufio.NewReader(c).ReadString('\n')
	bw := bufio.NewWriter(c)
	switch line {
	case pingRequest:
		_, _ = bw.WriteString(pongResponse)
	case infoRequest:
		_, _ = bw.WriteString(infoResponse + s.info + "\n")
	default:
		log.Printf("singleinstance: unknown request %q from %s", strings.TrimSpace(line), c.RemoteAddr())
		_, _ = bw.WriteString("ERROR\n")
	}
	_ = bw.Flush()
}

// Close releases ownership.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.lis.Close()
	})
	return err
}
