package repl

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"SIM-TCP/pkg/ipstack"
	"SIM-TCP/pkg/iptcpstack"

	"github.com/pkg/errors"
)

const usage = `Commands:
  ls                                 list sockets
  socket <stream|dgram>              create a socket
  bind <sid> <ip> <port>             bind a socket
  listen <sid> [backlog]             start listening
  a <port>                           bind, listen and accept on a port
  accept <sid>                       accept a connection
  c <ip> <port>                      create a stream socket and connect
  connect <sid> <ip> <port>          connect an existing socket
  s <sid> <data>                     send on a connected socket
  r <sid> <n>                        receive up to n bytes
  sendto <sid> <ip> <port> <data>    send a datagram
  recvfrom <sid> <n>                 receive a datagram
  shut <sid>                         half-close a stream
  timeout <sid>                      fire the TIME-WAIT timer
  resize <sid> <send> <recv>         resize socket buffers
  info <sid>                         show socket details
  cl <sid>                           close a socket
  q                                  quit`

// StartRepl reads commands from in until EOF or q.
func StartRepl(stack *iptcpstack.Stack, in io.Reader, out io.Writer) {
	reader := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !reader.Scan() {
			break
		}
		input := strings.TrimSpace(reader.Text())
		if input == "" {
			continue
		}
		if input == "q" || input == "exit" {
			break
		}
		if err := Execute(stack, input, out); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

// Execute runs a single command line.
func Execute(stack *iptcpstack.Stack, input string, out io.Writer) error {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "ls":
		listSockets(stack, out)
		return nil

	case "socket":
		if len(args) != 1 {
			return usageErr("socket <stream|dgram>")
		}
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		h, err := stack.Socket(iptcpstack.AF_INET, kind, 0)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Created socket %d\n", h)

	case "bind":
		if len(args) != 3 {
			return usageErr("bind <sid> <ip> <port>")
		}
		h, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		addr, err := parseAddr(args[1], args[2])
		if err != nil {
			return err
		}
		return stack.Bind(h, addr)

	case "listen":
		if len(args) < 1 || len(args) > 2 {
			return usageErr("listen <sid> [backlog]")
		}
		h, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		backlog := 0
		if len(args) == 2 {
			if backlog, err = strconv.Atoi(args[1]); err != nil {
				return err
			}
		}
		return stack.Listen(h, backlog)

	case "a":
		if len(args) != 1 {
			return usageErr("a <port>")
		}
		addr, err := parseAddr("0.0.0.0", args[0])
		if err != nil {
			return err
		}
		h, err := stack.Socket(iptcpstack.AF_INET, iptcpstack.SOCK_STREAM, 0)
		if err != nil {
			return err
		}
		if err := stack.Bind(h, addr); err != nil {
			stack.Close(h)
			return err
		}
		if err := stack.Listen(h, 0); err != nil {
			stack.Close(h)
			return err
		}
		fmt.Fprintf(out, "Listening on socket %d\n", h)
		return accept(stack, h, out)

	case "accept":
		if len(args) != 1 {
			return usageErr("accept <sid>")
		}
		h, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		return accept(stack, h, out)

	case "c":
		if len(args) != 2 {
			return usageErr("c <ip> <port>")
		}
		addr, err := parseAddr(args[0], args[1])
		if err != nil {
			return err
		}
		h, err := stack.Socket(iptcpstack.AF_INET, iptcpstack.SOCK_STREAM, 0)
		if err != nil {
			return err
		}
		if err := stack.Connect(h, addr); err != nil {
			stack.Close(h)
			return err
		}
		fmt.Fprintf(out, "Created new socket with ID %d\n", h)

	case "connect":
		if len(args) != 3 {
			return usageErr("connect <sid> <ip> <port>")
		}
		h, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		addr, err := parseAddr(args[1], args[2])
		if err != nil {
			return err
		}
		return stack.Connect(h, addr)

	case "s":
		parts := strings.SplitN(input, " ", 3)
		if len(parts) != 3 {
			return usageErr("s <sid> <data>")
		}
		h, err := strconv.Atoi(parts[1])
		if err != nil {
			return err
		}
		n, err := stack.Send(h, []byte(parts[2]))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Sent %d bytes\n", n)

	case "r":
		if len(args) != 2 {
			return usageErr("r <sid> <n>")
		}
		h, max, err := parseTwoInts(args[0], args[1])
		if err != nil {
			return err
		}
		data, err := stack.Recv(h, max)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Read %d bytes: %s\n", len(data), data)

	case "sendto":
		parts := strings.SplitN(input, " ", 5)
		if len(parts) != 5 {
			return usageErr("sendto <sid> <ip> <port> <data>")
		}
		h, err := strconv.Atoi(parts[1])
		if err != nil {
			return err
		}
		addr, err := parseAddr(parts[2], parts[3])
		if err != nil {
			return err
		}
		n, err := stack.SendTo(h, []byte(parts[4]), addr)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Sent %d bytes to %s\n", n, addr)

	case "recvfrom":
		if len(args) != 2 {
			return usageErr("recvfrom <sid> <n>")
		}
		h, max, err := parseTwoInts(args[0], args[1])
		if err != nil {
			return err
		}
		data, from, err := stack.RecvFrom(h, max)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Read %d bytes from %s: %s\n", len(data), from, data)

	case "shut", "timeout", "info", "cl":
		if len(args) != 1 {
			return usageErr(cmd + " <sid>")
		}
		h, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		switch cmd {
		case "shut":
			return stack.CloseWrite(h)
		case "timeout":
			state, err := stack.Timeout(h)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Socket %d is %s\n", h, state)
		case "info":
			info, err := stack.Info(h)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, info)
		case "cl":
			return stack.Close(h)
		}

	case "resize":
		if len(args) != 3 {
			return usageErr("resize <sid> <send> <recv>")
		}
		h, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		send, recv, err := parseTwoInts(args[1], args[2])
		if err != nil {
			return err
		}
		return stack.Resize(h, send, recv)

	case "help", "?":
		fmt.Fprintln(out, usage)

	default:
		return errors.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

func listSockets(stack *iptcpstack.Stack, out io.Writer) {
	w := tabwriter.NewWriter(out, 1, 1, 3, ' ', 0)
	fmt.Fprintln(w, "SID\tKind\tLAddr\tLPort\tRAddr\tRPort\tStatus")
	for _, info := range stack.Sockets() {
		status := info.State.String()
		if info.Kind == iptcpstack.SOCK_STREAM {
			status = info.TCPState.String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%d\t%s\n",
			info.Handle,
			iptcpstack.KindName(info.Kind),
			ipstack.InetNtoa(info.Local.IP), info.Local.HostPort(),
			ipstack.InetNtoa(info.Peer.IP), info.Peer.HostPort(),
			status,
		)
	}
	w.Flush()
}

func accept(stack *iptcpstack.Stack, h int, out io.Writer) error {
	child, peer, err := stack.Accept(h)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "New connection on socket %d => created new socket %d from %s\n", h, child, peer)
	return nil
}

func parseKind(s string) (int, error) {
	switch strings.ToLower(s) {
	case "stream", "tcp":
		return iptcpstack.SOCK_STREAM, nil
	case "dgram", "udp":
		return iptcpstack.SOCK_DGRAM, nil
	}
	return 0, errors.Errorf("unknown socket kind %q", s)
}

func parseAddr(ip, port string) (ipstack.Addr, error) {
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return ipstack.Addr{}, errors.Errorf("invalid port %q", port)
	}
	return ipstack.MakeAddr(ip, uint16(p))
}

func parseTwoInts(a, b string) (int, int, error) {
	x, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func usageErr(u string) error {
	return errors.Errorf("usage: %s", u)
}
