package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

func timeoutFrom(ctx context.Context) time.Duration {
	deadline := clientTimeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < deadline {
			deadline = d
		}
	}
	return deadline
}

// Detect reports whether a resident answers PING on port.
func Detect(ctx context.Context, port int) bool {
	resp, err := roundTrip(ctx, port, pingRequest, 1)
	return err == nil && len(resp) == 1 && resp[0] == pongResponse
}

// ResidentInfo asks the resident for its HTTP address.
func ResidentInfo(ctx context.Context, port int) (string, error) {
	resp, err := roundTrip(ctx, port, infoRequest, 2)
	if err != nil {
		return "", err
	}
	if len(resp) != 2 || resp[0] != infoResponse {
		return "", fmt.Errorf("unexpected resident reply %q", strings.Join(resp, ""))
	}
	return strings.TrimSpace(resp[1]), nil
}

func roundTrip(ctx context.Context, port int, request string, lines int) ([]string, error) {
	timeout := timeoutFrom(ctx)
	addr := net.JoinHostPort(residentHost, fmt.Sprint(port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(request); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	br := bufio.NewReader(conn)
	out := make([]string, 0, lines)
	for i := 0; i < lines; i++ {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}
