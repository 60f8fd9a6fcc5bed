// Package control serves the line-oriented command socket used to switch
// the dashboard's drive mode and color scheme.
//
// Requests are one per line:
//
//	set_mode Road|Track
//	set_scheme Light|Dark
//	get_mode
//	get_scheme
//
// Values are case-insensitive. Each request gets one reply line, "OK" (with
// the value for get_*) or "ERR <reason>".
package control

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vx220/vxdash/telemetry"
)

const maxLineLen = 256

// Selectors is the part of the telemetry store the control socket writes.
type Selectors interface {
	DriveMode() telemetry.DriveMode
	SetDriveMode(telemetry.DriveMode)
	ColorScheme() telemetry.ColorScheme
	SetColorScheme(telemetry.ColorScheme)
}

type Server struct {
	sel Selectors
	ln  net.Listener
	wg  sync.WaitGroup
}

// Listen opens the control socket. A stale unix socket file at address is
// removed first.
func Listen(network, address string, sel Selectors) (*Server, error) {
	if network == "unix" {
		if err := os.Remove(address); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "unable to remove stale socket %s", address)
		}
	}
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to listen on %s %s", network, address)
	}
	return &Server{sel: sel, ln: ln}, nil
}

func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve accepts connections until ctx is done, then closes the listener and
// waits for open connections to finish.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()
	defer s.wg.Wait()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "accept")
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	scan := bufio.NewScanner(conn)
	scan.Buffer(make([]byte, maxLineLen), maxLineLen)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}
		reply := Handle(s.sel, line)
		log.WithFields(log.Fields{"request": line, "reply": reply}).Debug("control request")
		if _, err := fmt.Fprintln(conn, reply); err != nil {
			log.WithField("err", err).Warn("unable to write control reply")
			return
		}
	}
	err := scan.Err()
	if errors.Is(err, bufio.ErrTooLong) {
		_, _ = fmt.Fprintln(conn, "ERR line too long")
	}
	if err != nil && ctx.Err() == nil {
		log.WithField("err", err).Warn("control connection")
	}
}

// Handle executes one request line and returns the reply.
func Handle(sel Selectors, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "ERR empty request"
	}
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "set_mode", "set_scheme":
		if len(args) != 1 {
			return fmt.Sprintf("ERR %s takes one value", cmd)
		}
		if err := set(sel, cmd, args[0]); err != nil {
			return "ERR " + err.Error()
		}
		return "OK"
	case "get_mode":
		return "OK " + sel.DriveMode().String()
	case "get_scheme":
		return "OK " + sel.ColorScheme().String()
	}
	return fmt.Sprintf("ERR unknown command %q", cmd)
}

func set(sel Selectors, cmd, value string) error {
	if cmd == "set_mode" {
		m, err := telemetry.ParseDriveMode(value)
		if err != nil {
			return err
		}
		sel.SetDriveMode(m)
		return nil
	}
	c, err := telemetry.ParseColorScheme(value)
	if err != nil {
		return err
	}
	sel.SetColorScheme(c)
	return nil
}
