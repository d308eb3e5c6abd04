package iptcpstack

import (
	"SIM-TCP/pkg/buffer"
	"SIM-TCP/pkg/ipstack"
	"SIM-TCP/pkg/tcpstack"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// create registers a new unbound endpoint. Caller holds the write lock.
func (s *Stack) create(domain, kind, protocol int) (*endpoint, error) {
	if domain != AF_INET && domain != AF_UNIX {
		return nil, errors.Wrapf(ErrInvalidArgument, "unsupported domain %d", domain)
	}
	switch kind {
	case SOCK_STREAM:
		if protocol == IPPROTO_IP {
			protocol = IPPROTO_TCP
		}
		if protocol != IPPROTO_TCP {
			return nil, errors.Wrapf(ErrInvalidArgument, "protocol %d on a stream socket", protocol)
		}
	case SOCK_DGRAM:
		if protocol == IPPROTO_IP {
			protocol = IPPROTO_UDP
		}
		if protocol != IPPROTO_UDP {
			return nil, errors.Wrapf(ErrInvalidArgument, "protocol %d on a datagram socket", protocol)
		}
	default:
		return nil, errors.Wrapf(ErrInvalidArgument, "unsupported socket kind %d", kind)
	}

	e := &endpoint{
		domain:   domain,
		kind:     kind,
		protocol: protocol,
		state:    Unbound,
		send:     buffer.New(s.config.SendBufferSize),
		recv:     buffer.New(s.config.RecvBufferSize),
	}
	s.insert(e)
	return e, nil
}

func (s *Stack) insert(e *endpoint) {
	e.handle = s.nextHandle
	s.nextHandle++
	s.sockets.ReplaceOrInsert(e)
	s.metrics.liveEndpoints.Inc()
	s.log.Debug("socket created",
		zap.Int("handle", e.handle),
		zap.String("kind", KindName(e.kind)),
		zap.Int("protocol", e.protocol),
	)
}

// destroy deregisters e. A connected stream endpoint sends its FIN first and
// a listener takes its pending connections down with it.
func (s *Stack) destroy(e *endpoint) {
	if e.isStream() && e.state == Connected {
		s.sendFin(e)
	}
	if e.backlog != nil {
	drain:
		for {
			select {
			case h := <-e.backlog:
				if child := s.lookup(h); child != nil {
					s.destroy(child)
				}
			default:
				break drain
			}
		}
	}

	// Datagram endpoints never leave Unbound, Bound or Connected.
	if e.isStream() {
		s.setState(e, Closing)
	}
	e.send.Clear()
	e.recv.Clear()
	e.sources = nil
	e.tcb.Reset()
	if e.isStream() {
		s.setState(e, Closed)
	}

	s.sockets.Delete(e)
	s.metrics.liveEndpoints.Dec()
	s.log.Debug("socket destroyed", zap.Int("handle", e.handle))
}

func (s *Stack) lookup(h int) *endpoint {
	e, ok := s.sockets.Get(&endpoint{handle: h})
	if !ok {
		return nil
	}
	return e
}

// find resolves a handle or fails with ErrNotFound. A stopped stack has no
// live handles.
func (s *Stack) find(h int) (*endpoint, error) {
	if !s.initialized {
		return nil, errors.Wrapf(ErrNotFound, "socket %d: stack not initialized", h)
	}
	e := s.lookup(h)
	if e == nil {
		return nil, errors.Wrapf(ErrNotFound, "socket %d", h)
	}
	return e, nil
}

// scan visits endpoints in creation order until fn returns false.
func (s *Stack) scan(fn func(e *endpoint) bool) {
	s.sockets.Ascend(func(e *endpoint) bool {
		return fn(e)
	})
}

// findByAddress returns the first endpoint of the given kind whose local
// address receives traffic for addr.
func (s *Stack) findByAddress(addr ipstack.Addr, kind int) *endpoint {
	var found *endpoint
	s.scan(func(e *endpoint) bool {
		if e.kind == kind && !e.local.IsZero() && e.local.Accepts(addr) {
			found = e
			return false
		}
		return true
	})
	return found
}

// findListener returns the first listening stream endpoint for addr.
func (s *Stack) findListener(addr ipstack.Addr) *endpoint {
	var found *endpoint
	s.scan(func(e *endpoint) bool {
		if e.isStream() && e.state == Listening && e.local.Accepts(addr) {
			found = e
			return false
		}
		return true
	})
	return found
}

// findStreamPeer returns the other end of a stream connection: the connected
// endpoint whose addresses mirror those of e and whose initial sequence
// numbers pair with e's. An endpoint left over from an earlier connection on
// the same address pair does not match.
func (s *Stack) findStreamPeer(e *endpoint) *endpoint {
	var found *endpoint
	s.scan(func(c *endpoint) bool {
		if c != e && c.isStream() && c.state == Connected &&
			c.local == e.peer && c.peer == e.local &&
			c.tcb.IRS() == e.tcb.ISS() && c.tcb.ISS() == e.tcb.IRS() {
			found = c
			return false
		}
		return true
	})
	return found
}

// addrInUse reports whether addr clashes with the binding of any endpoint
// other than self. Accepted connections share their listener's port and are
// not considered.
func (s *Stack) addrInUse(addr ipstack.Addr, self *endpoint) bool {
	inUse := false
	s.scan(func(e *endpoint) bool {
		if e == self || e.passive || e.local.IsZero() {
			return true
		}
		if e.local.Conflicts(addr) {
			inUse = true
			return false
		}
		return true
	})
	return inUse
}

// ephemeral binds e to the first free port on ip, searching upward from the
// configured base and wrapping at 65535.
func (s *Stack) ephemeral(e *endpoint, ip uint32) error {
	base := s.config.EphemeralBase
	port := base
	for i := 0; i < s.config.EphemeralAttempts; i++ {
		addr := ipstack.Addr{Family: ipstack.AF_INET, IP: ip, Port: ipstack.Htons(port)}
		if !s.addrInUse(addr, e) {
			e.local = addr
			return nil
		}
		if port == 65535 {
			port = base
		} else {
			port++
		}
	}
	return errors.Wrapf(ErrAddressInUse, "no ephemeral port after %d attempts", s.config.EphemeralAttempts)
}

// autoBind gives an unbound endpoint a loopback ephemeral address.
func (s *Stack) autoBind(e *endpoint) error {
	if !e.local.IsZero() {
		return nil
	}
	if err := s.ephemeral(e, ipstack.Htonl(ipstack.INADDR_LOOPBACK)); err != nil {
		return err
	}
	s.setState(e, Bound)
	s.log.Debug("auto-bound", zap.Int("handle", e.handle), zap.Stringer("local", e.local))
	return nil
}

func (s *Stack) setState(e *endpoint, state SocketState) {
	s.logState(e, e.state, state)
	e.state = state
}

func (s *Stack) apply(e *endpoint, ev tcpstack.Event) {
	t := e.tcb.Apply(ev)
	s.logTCP(e, t.From, t.To)
}
