// Package console implements a line-oriented flashing protocol: each input
// line is a command, each command is answered with a single OKAY or FAIL
// line.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
)

// Handler executes one command. args excludes the command name. Output
// written to w precedes the status line.
type Handler func(ctx context.Context, args []string, w io.Writer) (string, error)

type command struct {
	usage   string
	handler Handler
}

type Server struct {
	commands map[string]command

	// OnCommand is called for every command before it is dispatched,
	// typically to disable autoboot.
	OnCommand func()

	// Logf defaults to log.Printf.
	Logf func(format string, v ...interface{})
}

func NewServer() *Server {
	s := &Server{commands: make(map[string]command)}
	s.Register("help", "help", s.help)
	return s
}

func (s *Server) logf(format string, v ...interface{}) {
	if s.Logf != nil {
		s.Logf(format, v...)
		return
	}
	log.Printf(format, v...)
}

// Register adds a command. Registering the same name twice is a bug.
func (s *Server) Register(name, usage string, h Handler) {
	if _, ok := s.commands[name]; ok {
		panic(fmt.Sprintf("BUG: command %q registered twice", name))
	}
	s.commands[name] = command{usage: usage, handler: h}
}

func (s *Server) help(ctx context.Context, args []string, w io.Writer) (string, error) {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "INFO %s\n", s.commands[name].usage)
	}
	return "", nil
}

// Serve processes commands from r until r is exhausted or ctx is done.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if s.OnCommand != nil {
			s.OnCommand()
		}
		s.logf("command %q", line)
		cmd, ok := s.commands[fields[0]]
		if !ok {
			fmt.Fprintf(w, "FAIL unknown command %q\n", fields[0])
			continue
		}
		msg, err := cmd.handler(ctx, fields[1:], w)
		if err != nil {
			s.logf("%s: %v", fields[0], err)
			fmt.Fprintf(w, "FAIL %v\n", err)
			continue
		}
		if msg != "" {
			fmt.Fprintf(w, "OKAY %s\n", msg)
		} else {
			fmt.Fprintln(w, "OKAY")
		}
	}
	return scanner.Err()
}

// Stage reads all of r into scratch and returns the filled prefix. Images
// larger than scratch are rejected.
func Stage(scratch []byte, r io.Reader) ([]byte, error) {
	n, err := io.ReadFull(r, scratch)
	switch err {
	case io.EOF, io.ErrUnexpectedEOF:
		return scratch[:n], nil
	case nil:
		if extra, _ := io.Copy(io.Discard, io.LimitReader(r, 1)); extra > 0 {
			return nil, fmt.Errorf("image exceeds scratch buffer of %d bytes", len(scratch))
		}
		return scratch[:n], nil
	default:
		return nil, err
	}
}
