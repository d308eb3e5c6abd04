package main

import (
	"fmt"
	"io"
	"net/netip"

	"SIM-TCP/pkg/iptcpstack"
	"SIM-TCP/pkg/socket"

	"github.com/pkg/errors"
)

// runDemo plays a UDP ping between two bound sockets and a TCP echo through
// a listener on the wildcard address.
func runDemo(stack *iptcpstack.Stack, out io.Writer) error {
	if err := udpPing(stack, out); err != nil {
		return errors.Wrap(err, "udp ping")
	}
	if err := tcpEcho(stack, out); err != nil {
		return errors.Wrap(err, "tcp echo")
	}
	return nil
}

func udpPing(stack *iptcpstack.Stack, out io.Writer) error {
	a, err := socket.VBindUDP(stack, netip.MustParseAddrPort("127.0.0.1:9001"))
	if err != nil {
		return err
	}
	defer a.VClose()
	b, err := socket.VBindUDP(stack, netip.MustParseAddrPort("127.0.0.1:9002"))
	if err != nil {
		return err
	}
	defer b.VClose()

	if _, err := a.VWriteTo([]byte("ping"), b.LocalAddr()); err != nil {
		return err
	}
	buf := make([]byte, 64)
	n, from, err := b.VReadFrom(buf)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "udp: %s received %q (%d bytes) from %s\n", b.LocalAddr(), buf[:n], n, from)
	return nil
}

func tcpEcho(stack *iptcpstack.Stack, out io.Writer) error {
	l, err := socket.VListenAddr(stack, netip.MustParseAddrPort("0.0.0.0:8080"), 5)
	if err != nil {
		return err
	}
	defer l.VClose()

	c, err := socket.VConnect(stack, netip.MustParseAddr("127.0.0.1"), 8080)
	if err != nil {
		return err
	}
	srv, err := l.VAccept()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "tcp: %s connected to %s, accepted as socket %d\n", c.LocalAddr(), c.RemoteAddr(), srv.Handle())

	if _, err := c.VWrite([]byte("hello, echo")); err != nil {
		return err
	}
	buf := make([]byte, 64)
	n, err := srv.VRead(buf)
	if err != nil {
		return err
	}
	if _, err := srv.VWrite(buf[:n]); err != nil {
		return err
	}
	n, err = c.VRead(buf)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "tcp: echoed %q\n", buf[:n])

	if err := c.VClose(); err != nil {
		return err
	}
	state, err := stack.TCPStateOf(srv.Handle())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "tcp: client closed, server side is %s\n", state)
	return srv.VClose()
}
