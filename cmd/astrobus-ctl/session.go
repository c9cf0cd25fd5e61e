package main

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/astrobus-protocol/astrobus-go/pkg/transport"
	"github.com/astrobus-protocol/astrobus-go/pkg/wire"
)

// session is one interactive connection to a hub.
type session struct {
	conn   net.Conn
	framer *transport.LineFramer
	rl     *readline.Instance

	done chan struct{}
}

func newSession(conn net.Conn) (*session, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "astrobus> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &session{
		conn:   conn,
		framer: transport.NewLineFramer(conn),
		rl:     rl,
		done:   make(chan struct{}),
	}, nil
}

// run starts the event printer and the command loop.
func (s *session) run() error {
	defer s.rl.Close()

	go s.eventLoop()

	s.printHelp()
	s.send(&wire.Message{Enumerate: &wire.Enumerate{}})

	for {
		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return nil // EOF
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		fields := strings.Fields(input)
		switch fields[0] {
		case "help":
			s.printHelp()
		case "list":
			device := ""
			if len(fields) > 1 {
				device = fields[1]
			}
			s.send(&wire.Message{Enumerate: &wire.Enumerate{Device: device}})
		case "set":
			s.cmdSet(fields[1:])
		case "blob":
			s.cmdBlob(fields[1:])
		case "exit", "quit":
			return nil
		default:
			fmt.Fprintf(s.rl.Stdout(), "unknown command %q, try help\n", fields[0])
		}

		select {
		case <-s.done:
			fmt.Fprintln(s.rl.Stdout(), "connection closed by hub")
			return nil
		default:
		}
	}
}

func (s *session) printHelp() {
	fmt.Fprint(s.rl.Stdout(), `commands:
  list [device]                      enumerate properties
  set <device> <property> <item>=<value> ...
                                     request a change (on/off for switches)
  blob <device> [property] <never|also|url>
                                     set the binary transfer mode
  help                               show this help
  exit                               quit
`)
}

// cmdSet parses "set <device> <property> <item>=<value> ..." and sends a
// change request. Values are typed by shape: on/off become switches,
// numbers become numbers, everything else is text.
func (s *session) cmdSet(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(s.rl.Stdout(), "usage: set <device> <property> <item>=<value> ...")
		return
	}

	change := &wire.Change{Device: args[0], Name: args[1]}
	for _, arg := range args[2:] {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			fmt.Fprintf(s.rl.Stdout(), "bad item %q, expected name=value\n", arg)
			return
		}
		change.Items = append(change.Items, parseChangeItem(name, value))
	}
	s.send(&wire.Message{Change: change})
}

func parseChangeItem(name, value string) wire.ChangeItem {
	item := wire.ChangeItem{Name: name}
	switch strings.ToLower(value) {
	case "on", "true":
		on := true
		item.Switch = &on
		return item
	case "off", "false":
		off := false
		item.Switch = &off
		return item
	}
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		item.Number = &n
		return item
	}
	item.Text = &value
	return item
}

// cmdBlob parses "blob <device> [property] <mode>".
func (s *session) cmdBlob(args []string) {
	var msg wire.SetBlob
	switch len(args) {
	case 2:
		msg = wire.SetBlob{Device: args[0], Mode: wire.BlobMode(args[1])}
	case 3:
		msg = wire.SetBlob{Device: args[0], Name: args[1], Mode: wire.BlobMode(args[2])}
	default:
		fmt.Fprintln(s.rl.Stdout(), "usage: blob <device> [property] <never|also|url>")
		return
	}
	if !msg.Mode.Valid() {
		fmt.Fprintf(s.rl.Stdout(), "unknown blob mode %q\n", msg.Mode)
		return
	}
	s.send(&wire.Message{BlobMode: &msg})
}

func (s *session) send(msg *wire.Message) {
	line, err := wire.Encode(msg)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "encode error: %v\n", err)
		return
	}
	if err := s.framer.WriteLine(line); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "send error: %v\n", err)
	}
}

// eventLoop prints hub events until the connection drops.
func (s *session) eventLoop() {
	defer close(s.done)

	out := s.rl.Stdout()
	for {
		line, err := s.framer.ReadLine()
		if err != nil {
			if err != io.EOF {
				fmt.Fprintf(out, "read error: %v\n", err)
			}
			return
		}

		msg, err := wire.Decode(line)
		if err != nil {
			fmt.Fprintf(out, "bad line from hub: %v\n", err)
			continue
		}
		fmt.Fprintln(out, formatMessage(msg))
	}
}

// formatMessage renders one hub message for the console.
func formatMessage(msg *wire.Message) string {
	switch {
	case msg.Define != nil:
		d := msg.Define
		return fmt.Sprintf("define  %s/%s (%s %s, state %s): %s",
			d.Device, d.Name, d.Type, d.Perm, d.State, formatItems(d.Items))
	case msg.Update != nil:
		u := msg.Update
		return fmt.Sprintf("update  %s/%s (state %s): %s",
			u.Device, u.Name, u.State, formatItems(u.Items))
	case msg.Delete != nil:
		d := msg.Delete
		if d.Name == "" {
			return fmt.Sprintf("delete  %s (device removed)", d.Device)
		}
		return fmt.Sprintf("delete  %s/%s", d.Device, d.Name)
	case msg.Notice != nil:
		n := msg.Notice
		if n.Device != "" {
			return fmt.Sprintf("message [%s] %s: %s", n.Severity, n.Device, n.Text)
		}
		return fmt.Sprintf("message [%s] %s", n.Severity, n.Text)
	}
	return fmt.Sprintf("(%s)", msg.Verb())
}

func formatItems(items []wire.Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		switch {
		case it.Text != nil:
			parts = append(parts, fmt.Sprintf("%s=%q", it.Name, *it.Text))
		case it.Number != nil:
			parts = append(parts, fmt.Sprintf("%s=%g", it.Name, it.Number.Value))
		case it.Switch != nil:
			state := "off"
			if *it.Switch {
				state = "on"
			}
			parts = append(parts, fmt.Sprintf("%s=%s", it.Name, state))
		case it.Light != nil:
			parts = append(parts, fmt.Sprintf("%s=%s", it.Name, *it.Light))
		case it.Blob != nil:
			b := it.Blob
			switch {
			case len(b.Data) > 0:
				parts = append(parts, fmt.Sprintf("%s=<%d bytes inline>", it.Name, b.Size))
			case b.URL != "":
				parts = append(parts, fmt.Sprintf("%s=<%s>", it.Name, b.URL))
			default:
				parts = append(parts, fmt.Sprintf("%s=<%d bytes, payload suppressed>", it.Name, b.Size))
			}
		default:
			parts = append(parts, it.Name)
		}
	}
	return strings.Join(parts, " ")
}
