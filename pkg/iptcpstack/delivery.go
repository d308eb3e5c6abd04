package iptcpstack

import (
	"math/rand"

	"SIM-TCP/pkg/ipstack"
	"SIM-TCP/pkg/iptcp_utils"
	"SIM-TCP/pkg/tcpstack"

	"github.com/google/netstack/tcpip/header"
	"github.com/pkg/errors"
	"github.com/soypat/seqs"
	"go.uber.org/zap"
)

// Source ports handed to synthesized peers: 32768..62767.
const (
	synthPortBase  = 32768
	synthPortRange = 30000
)

func synthesizedPeer() ipstack.Addr {
	return ipstack.Loopback(uint16(synthPortBase + rand.Intn(synthPortRange)))
}

// sendTo copies data into the receive buffer of the datagram endpoint bound
// to dst. Bytes that do not fit, or have no receiver, are lost.
func (s *Stack) sendTo(e *endpoint, data []byte, dst ipstack.Addr) {
	target := s.findByAddress(dst, SOCK_DGRAM)
	if target == nil || target == e {
		s.metrics.dropped(e.kind, len(data))
		s.log.Debug("datagram dropped, no receiver",
			zap.Int("handle", e.handle),
			zap.Stringer("dst", dst),
			zap.Int("bytes", len(data)),
		)
		return
	}

	n := target.recv.Write(data)
	if n > 0 {
		target.sources = append(target.sources, datagramSource{from: e.local, n: n})
	}
	s.metrics.delivered(e.kind, n)
	if n < len(data) {
		s.metrics.dropped(e.kind, len(data)-n)
		s.log.Debug("datagram truncated",
			zap.Int("handle", e.handle),
			zap.Int("target", target.handle),
			zap.Int("delivered", n),
			zap.Int("dropped", len(data)-n),
		)
	}
}

// recvFrom pops up to max bytes and reports where the oldest of them came
// from.
func (s *Stack) recvFrom(e *endpoint, max int) ([]byte, ipstack.Addr, error) {
	data := e.recv.Read(max)
	if len(data) == 0 {
		return nil, ipstack.Addr{}, errors.Wrapf(ErrWouldBlock, "recvfrom %d", e.handle)
	}
	return data, e.consumeSources(len(data)), nil
}

// consumeSources retires n bytes from the source records and returns the
// sender of the first of them.
func (e *endpoint) consumeSources(n int) ipstack.Addr {
	if len(e.sources) == 0 {
		return synthesizedPeer()
	}
	from := e.sources[0].from
	for n > 0 && len(e.sources) > 0 {
		head := &e.sources[0]
		if head.n > n {
			head.n -= n
			break
		}
		n -= head.n
		e.sources = e.sources[1:]
	}
	if from.IsZero() {
		return synthesizedPeer()
	}
	return from
}

// trimSources drops the newest source records that no longer have bytes in
// the receive buffer.
func (e *endpoint) trimSources() {
	excess := -e.recv.Len()
	for _, src := range e.sources {
		excess += src.n
	}
	for excess > 0 && len(e.sources) > 0 {
		tail := &e.sources[len(e.sources)-1]
		if tail.n > excess {
			tail.n -= excess
			break
		}
		excess -= tail.n
		e.sources = e.sources[:len(e.sources)-1]
	}
}

// flush drains the send buffer of a connected stream endpoint into the
// receive buffer of its peer.
func (s *Stack) flush(e *endpoint) {
	payload := e.send.Drain()
	if len(payload) == 0 {
		return
	}
	peer := s.findStreamPeer(e)
	if peer == nil {
		s.metrics.dropped(e.kind, len(payload))
		s.log.Debug("stream data consumed, no peer",
			zap.Int("handle", e.handle),
			zap.Stringer("peer", e.peer),
			zap.Int("bytes", len(payload)),
		)
		return
	}
	n := peer.recv.Write(payload)
	s.metrics.delivered(e.kind, n)
	if n < len(payload) {
		s.metrics.dropped(e.kind, len(payload)-n)
		s.log.Debug("peer receive buffer full",
			zap.Int("handle", e.handle),
			zap.Int("peer", peer.handle),
			zap.Int("dropped", len(payload)-n),
		)
	}
}

func window(e *endpoint) uint16 {
	free := e.recv.Free()
	if free > 0xffff {
		return 0xffff
	}
	return uint16(free)
}

// transmit carries one control segment from one end of a connection to the
// other through the segment codec. The receiver's state advances with the
// event raised by the segment flags.
func (s *Stack) transmit(from, to *endpoint, flags uint8) error {
	src, dst := from.local.NetIP(), from.peer.NetIP()
	fields := from.tcb.Outgoing(flags, from.local.HostPort(), from.peer.HostPort(), window(from))
	segment := iptcp_utils.BuildSegment(fields, src, dst, nil)

	got, _, err := iptcp_utils.ValidateSegment(segment, src, dst)
	if err != nil {
		s.log.Debug("segment dropped", zap.Int("to", to.handle), zap.Error(err))
		return err
	}
	t := to.tcb.Incoming(got)
	s.logTCP(to, t.From, t.To)
	return nil
}

// handshake runs SYN, SYN|ACK, ACK between a client in SYN-SENT and a fresh
// server side endpoint in LISTEN.
func (s *Stack) handshake(client, server *endpoint) error {
	if err := s.transmit(client, server, header.TCPFlagSyn); err != nil {
		return err
	}
	if err := s.transmit(server, client, header.TCPFlagSyn|header.TCPFlagAck); err != nil {
		return err
	}
	if err := s.transmit(client, server, header.TCPFlagAck); err != nil {
		return err
	}
	if client.tcb.State() != server.tcb.State() {
		return errors.Errorf("handshake ended in %s/%s", client.tcb.State(), server.tcb.State())
	}
	return nil
}

// sendFin issues a close request on e and, when that moved the connection
// forward, delivers the FIN to the peer and its ACK back.
func (s *Stack) sendFin(e *endpoint) {
	t := e.tcb.Apply(tcpstack.EventClose)
	s.logTCP(e, t.From, t.To)
	if !t.Changed() {
		return
	}
	peer := s.findStreamPeer(e)
	if peer == nil {
		return
	}
	if err := s.transmit(e, peer, header.TCPFlagFin|header.TCPFlagAck); err != nil {
		s.log.Debug("fin not delivered", zap.Int("handle", e.handle), zap.Error(err))
		return
	}
	if err := s.transmit(peer, e, header.TCPFlagAck); err != nil {
		s.log.Debug("fin not acknowledged", zap.Int("handle", e.handle), zap.Error(err))
	}
}

// peerClosed reports whether the other end has sent its FIN.
func peerClosed(e *endpoint) bool {
	switch e.tcb.State() {
	case seqs.StateCloseWait, seqs.StateLastAck, seqs.StateClosing, seqs.StateTimeWait, seqs.StateClosed:
		return true
	}
	return false
}

// canSend reports whether e may still carry data towards its peer.
func canSend(e *endpoint) bool {
	switch e.tcb.State() {
	case seqs.StateEstablished, seqs.StateCloseWait:
		return true
	}
	return false
}
