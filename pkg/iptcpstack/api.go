package iptcpstack

import (
	"io"

	"SIM-TCP/pkg/buffer"
	"SIM-TCP/pkg/ipstack"
	"SIM-TCP/pkg/tcpstack"

	"github.com/pkg/errors"
	"github.com/soypat/seqs"
	"go.uber.org/zap"
)

// Socket creates an endpoint and returns its handle. A zero protocol selects
// TCP for stream sockets and UDP for datagram sockets.
func (s *Stack) Socket(domain, kind, protocol int) (int, error) {
	s.logCall("socket", domain, kind, protocol)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return -1, err
	}
	e, err := s.create(domain, kind, protocol)
	if err != nil {
		return -1, errors.Wrap(err, "socket")
	}
	return e.handle, nil
}

// Bind assigns a local address. Port zero picks an ephemeral port on the
// requested IP.
func (s *Stack) Bind(h int, addr ipstack.Addr) error {
	s.logCall("bind", h, addr)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(h)
	if err != nil {
		return errors.Wrap(err, "bind")
	}
	if addr.Family != ipstack.AF_INET {
		return errors.Wrapf(ErrInvalidArgument, "bind %d: family %d", h, addr.Family)
	}
	if e.state != Unbound || !e.local.IsZero() {
		return errors.Wrapf(ErrInvalidArgument, "bind %d: already bound to %s", h, e.local)
	}
	if addr.IsZero() {
		if err := s.ephemeral(e, addr.IP); err != nil {
			return errors.Wrapf(err, "bind %d", h)
		}
	} else {
		if s.addrInUse(addr, e) {
			return errors.Wrapf(ErrAddressInUse, "bind %d: %s", h, addr)
		}
		e.local = addr
	}
	s.setState(e, Bound)
	return nil
}

// Listen turns a bound stream endpoint into a listener. The backlog is
// clamped to the configured maximum; non-positive values select the default.
func (s *Stack) Listen(h int, backlog int) error {
	s.logCall("listen", h, backlog)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(h)
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	if !e.isStream() {
		return errors.Wrapf(ErrInvalidArgument, "listen %d: not a stream socket", h)
	}
	if e.state != Bound || e.local.IsZero() {
		return errors.Wrapf(ErrInvalidArgument, "listen %d: socket is %s", h, e.state)
	}

	e.backlog = make(chan int, s.config.ClampBacklog(backlog))
	s.apply(e, tcpstack.EventListen)
	s.setState(e, Listening)
	return nil
}

// Accept dequeues the oldest pending connection on a listener and returns its
// handle and peer address. With nothing pending it synthesizes an established
// connection from a loopback peer.
func (s *Stack) Accept(h int) (int, ipstack.Addr, error) {
	s.logCall("accept", h)
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.find(h)
	if err != nil {
		return -1, ipstack.Addr{}, errors.Wrap(err, "accept")
	}
	if !l.isStream() || l.state != Listening {
		return -1, ipstack.Addr{}, errors.Wrapf(ErrInvalidArgument, "accept %d: not listening", h)
	}

	for len(l.backlog) > 0 {
		child := s.lookup(<-l.backlog)
		if child == nil {
			continue
		}
		child.listener = 0
		return child.handle, child.peer, nil
	}

	child := &endpoint{
		domain:   l.domain,
		kind:     l.kind,
		protocol: l.protocol,
		local:    l.local,
		peer:     synthesizedPeer(),
		passive:  true,
	}
	child.send = buffer.New(s.config.SendBufferSize)
	child.recv = buffer.New(s.config.RecvBufferSize)
	s.insert(child)
	child.tcb.SetState(seqs.StateEstablished)
	s.logTCP(child, seqs.StateClosed, seqs.StateEstablished)
	s.setState(child, Connected)
	s.log.Debug("accepted synthesized connection",
		zap.Int("listener", h),
		zap.Int("handle", child.handle),
		zap.Stringer("peer", child.peer),
	)
	return child.handle, child.peer, nil
}

// Connect associates an endpoint with a remote address. Stream endpoints
// complete a handshake with a listener matching addr, whose backlog receives
// the server side of the connection; failure leaves the endpoint as it was and
// reports ErrConnectionRefused. Datagram endpoints only record the peer.
func (s *Stack) Connect(h int, addr ipstack.Addr) error {
	s.logCall("connect", h, addr)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(h)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	if addr.Family != ipstack.AF_INET && addr.Family != ipstack.AF_UNSPEC {
		return errors.Wrapf(ErrInvalidArgument, "connect %d: family %d", h, addr.Family)
	}
	if e.isDatagram() {
		return s.connectDatagram(e, addr)
	}
	if e.state != Unbound && e.state != Bound {
		return errors.Wrapf(ErrInvalidArgument, "connect %d: socket is %s", h, e.state)
	}
	return s.connectStream(e, addr)
}

func (s *Stack) connectDatagram(e *endpoint, addr ipstack.Addr) error {
	if addr.IsZero() {
		return errors.Wrapf(ErrInvalidArgument, "connect %d: no destination port", e.handle)
	}
	if err := s.autoBind(e); err != nil {
		return errors.Wrapf(err, "connect %d", e.handle)
	}
	e.peer = addr
	s.setState(e, Connected)
	return nil
}

func (s *Stack) connectStream(e *endpoint, addr ipstack.Addr) error {
	prevState, prevLocal := e.state, e.local
	rollback := func(reason string) error {
		e.peer = ipstack.Addr{}
		e.local = prevLocal
		e.tcb.Reset()
		s.setState(e, prevState)
		s.metrics.refused.Inc()
		s.log.Debug("connection refused",
			zap.Int("handle", e.handle),
			zap.Stringer("peer", addr),
			zap.String("reason", reason),
		)
		return errors.Wrapf(ErrConnectionRefused, "connect %d to %s: %s", e.handle, addr, reason)
	}

	e.peer = addr
	if err := s.autoBind(e); err != nil {
		e.peer = ipstack.Addr{}
		return errors.Wrapf(err, "connect %d", e.handle)
	}
	s.setState(e, Connecting)
	s.apply(e, tcpstack.EventConnect)

	if addr.IsZero() {
		return rollback("no destination port")
	}
	l := s.findListener(addr)
	if l == nil {
		return rollback("no listener")
	}
	if len(l.backlog) == cap(l.backlog) {
		return rollback("backlog full")
	}

	child := &endpoint{
		domain:   l.domain,
		kind:     l.kind,
		protocol: l.protocol,
		local:    addr,
		peer:     e.local,
		listener: l.handle,
		passive:  true,
	}
	child.send = buffer.New(s.config.SendBufferSize)
	child.recv = buffer.New(s.config.RecvBufferSize)
	s.insert(child)
	s.apply(child, tcpstack.EventListen)

	if err := s.handshake(e, child); err != nil {
		s.destroy(child)
		return rollback(err.Error())
	}
	select {
	case l.backlog <- child.handle:
	default:
		s.destroy(child)
		return rollback("backlog full")
	}

	s.setState(child, Connected)
	s.setState(e, Connected)
	s.metrics.established.Inc()
	s.log.Debug("connection established",
		zap.Int("handle", e.handle),
		zap.Int("server", child.handle),
		zap.Stringer("local", e.local),
		zap.Stringer("peer", e.peer),
	)
	return nil
}

// Send writes data on a connected endpoint and returns the number of bytes
// accepted.
func (s *Stack) Send(h int, data []byte) (int, error) {
	s.logCall("send", h, len(data))
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(h)
	if err != nil {
		return -1, errors.Wrap(err, "send")
	}
	if len(data) == 0 {
		return -1, errors.Wrapf(ErrInvalidArgument, "send %d: empty payload", h)
	}
	if e.state != Connected {
		return -1, errors.Wrapf(ErrInvalidArgument, "send %d: socket is %s", h, e.state)
	}
	if e.isDatagram() {
		s.sendTo(e, data, e.peer)
		return len(data), nil
	}
	if !canSend(e) {
		return -1, errors.Wrapf(ErrInvalidArgument, "send %d: connection is %s", h, e.tcb.State())
	}
	if e.send.Free() == 0 {
		return -1, errors.Wrapf(ErrWouldBlock, "send %d", h)
	}
	n := e.send.Write(data)
	s.flush(e)
	return n, nil
}

// Recv reads up to max bytes from a connected endpoint. An empty buffer
// yields ErrWouldBlock, or io.EOF once a stream peer has closed.
func (s *Stack) Recv(h int, max int) ([]byte, error) {
	s.logCall("recv", h, max)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(h)
	if err != nil {
		return nil, errors.Wrap(err, "recv")
	}
	if max <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "recv %d: max %d", h, max)
	}
	if e.state != Connected && !(e.isStream() && e.state == Closed) {
		return nil, errors.Wrapf(ErrInvalidArgument, "recv %d: socket is %s", h, e.state)
	}
	if e.isDatagram() {
		data, _, err := s.recvFrom(e, max)
		return data, err
	}

	data := e.recv.Read(max)
	if len(data) > 0 {
		return data, nil
	}
	if peerClosed(e) {
		return nil, io.EOF
	}
	return nil, errors.Wrapf(ErrWouldBlock, "recv %d", h)
}

// SendTo sends a datagram to dst. The full length is always reported; the
// datagram is silently lost when nothing is bound to dst or the receiver has
// no room.
func (s *Stack) SendTo(h int, data []byte, dst ipstack.Addr) (int, error) {
	s.logCall("sendto", h, len(data), dst)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(h)
	if err != nil {
		return -1, errors.Wrap(err, "sendto")
	}
	if len(data) == 0 {
		return -1, errors.Wrapf(ErrInvalidArgument, "sendto %d: empty payload", h)
	}
	if !e.isDatagram() {
		return -1, errors.Wrapf(ErrInvalidArgument, "sendto %d: not a datagram socket", h)
	}
	if dst.Family != ipstack.AF_INET || dst.IsZero() {
		return -1, errors.Wrapf(ErrInvalidArgument, "sendto %d: bad destination %s", h, dst)
	}
	if err := s.autoBind(e); err != nil {
		return -1, errors.Wrapf(err, "sendto %d", h)
	}
	s.sendTo(e, data, dst)
	return len(data), nil
}

// RecvFrom reads up to max bytes from a datagram endpoint along with the
// address of the sender.
func (s *Stack) RecvFrom(h int, max int) ([]byte, ipstack.Addr, error) {
	s.logCall("recvfrom", h, max)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(h)
	if err != nil {
		return nil, ipstack.Addr{}, errors.Wrap(err, "recvfrom")
	}
	if max <= 0 {
		return nil, ipstack.Addr{}, errors.Wrapf(ErrInvalidArgument, "recvfrom %d: max %d", h, max)
	}
	if !e.isDatagram() {
		return nil, ipstack.Addr{}, errors.Wrapf(ErrInvalidArgument, "recvfrom %d: not a datagram socket", h)
	}
	return s.recvFrom(e, max)
}

// Close destroys an endpoint. A connected stream endpoint first delivers its
// FIN to the peer.
func (s *Stack) Close(h int) error {
	s.logCall("close", h)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(h)
	if err != nil {
		return errors.Wrap(err, "close")
	}
	s.destroy(e)
	return nil
}

// CloseWrite half-closes a connected stream: the FIN is sent but the endpoint
// stays registered and can keep reading until the peer closes too.
func (s *Stack) CloseWrite(h int) error {
	s.logCall("closewrite", h)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(h)
	if err != nil {
		return errors.Wrap(err, "closewrite")
	}
	if !e.isStream() || e.state != Connected {
		return errors.Wrapf(ErrInvalidArgument, "closewrite %d: socket is %s", h, e.state)
	}
	s.sendFin(e)
	return nil
}

// Timeout fires the TIME-WAIT timer of a stream endpoint.
func (s *Stack) Timeout(h int) (seqs.State, error) {
	s.logCall("timeout", h)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(h)
	if err != nil {
		return seqs.StateClosed, errors.Wrap(err, "timeout")
	}
	if !e.isStream() {
		return seqs.StateClosed, errors.Wrapf(ErrInvalidArgument, "timeout %d: not a stream socket", h)
	}
	s.apply(e, tcpstack.EventTimeout)
	if e.tcb.State() == seqs.StateClosed && e.state == Connected {
		s.setState(e, Closed)
	}
	return e.tcb.State(), nil
}

// StateOf returns the socket level state of an endpoint.
func (s *Stack) StateOf(h int) (SocketState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.find(h)
	if err != nil {
		return Closed, errors.Wrap(err, "state")
	}
	return e.state, nil
}

// TCPStateOf returns the TCP state of a stream endpoint.
func (s *Stack) TCPStateOf(h int) (seqs.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.find(h)
	if err != nil {
		return seqs.StateClosed, errors.Wrap(err, "tcp state")
	}
	if !e.isStream() {
		return seqs.StateClosed, errors.Wrapf(ErrInvalidArgument, "tcp state %d: not a stream socket", h)
	}
	return e.tcb.State(), nil
}

// SetNonblocking records the flag. Every operation already returns
// immediately, so it only shows up in Info.
func (s *Stack) SetNonblocking(h int, nonblocking bool) error {
	s.logCall("setnonblocking", h, nonblocking)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(h)
	if err != nil {
		return errors.Wrap(err, "setnonblocking")
	}
	e.nonblocking = nonblocking
	return nil
}

// Resize changes the buffer capacities of an endpoint. A zero size leaves
// that buffer alone. Shrinking keeps the oldest bytes.
func (s *Stack) Resize(h int, sendSize, recvSize int) error {
	s.logCall("resize", h, sendSize, recvSize)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(h)
	if err != nil {
		return errors.Wrap(err, "resize")
	}
	if sendSize < 0 || recvSize < 0 {
		return errors.Wrapf(ErrInvalidArgument, "resize %d: negative size", h)
	}
	for _, r := range []struct {
		buf  *buffer.Buffer
		size int
	}{{e.send, sendSize}, {e.recv, recvSize}} {
		if r.size == 0 {
			continue
		}
		dropped, err := r.buf.Resize(r.size)
		if err != nil {
			return errors.Wrapf(ErrInvalidArgument, "resize %d: %v", h, err)
		}
		s.metrics.dropped(e.kind, dropped)
	}
	if recvSize > 0 {
		e.trimSources()
	}
	return nil
}

// ClearBuffers discards the contents of both buffers.
func (s *Stack) ClearBuffers(h int) error {
	s.logCall("clearbuffers", h)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.find(h)
	if err != nil {
		return errors.Wrap(err, "clearbuffers")
	}
	e.send.Clear()
	e.recv.Clear()
	e.sources = nil
	return nil
}

// BufferStatus reports the send and receive buffer usage.
func (s *Stack) BufferStatus(h int) (send, recv buffer.Status, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.find(h)
	if err != nil {
		return send, recv, errors.Wrap(err, "buffer status")
	}
	return e.send.Status(), e.recv.Status(), nil
}

// Info returns a snapshot of one endpoint.
func (s *Stack) Info(h int) (SocketInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.find(h)
	if err != nil {
		return SocketInfo{}, errors.Wrap(err, "info")
	}
	return e.info(), nil
}

// Sockets lists every live endpoint in handle order.
func (s *Stack) Sockets() []SocketInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ready() != nil {
		return nil
	}
	infos := make([]SocketInfo, 0, s.sockets.Len())
	s.scan(func(e *endpoint) bool {
		infos = append(infos, e.info())
		return true
	})
	return infos
}
