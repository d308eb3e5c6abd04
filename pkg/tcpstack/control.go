package tcpstack

import (
	"math/rand"

	"github.com/google/netstack/tcpip/header"
	"github.com/soypat/seqs"
)

// ControlBlock is the per-connection TCP state: the current state plus the
// sequence numbers carried by the simulated control segments. It is not safe
// for concurrent use; the owning registry serializes access.
type ControlBlock struct {
	state  seqs.State
	iss    seqs.Value // initial send sequence number
	irs    seqs.Value // initial receive sequence number
	sndNxt seqs.Value
	rcvNxt seqs.Value
	issSet bool
}

// Transitioned describes a state change produced by an event.
type Transitioned struct {
	Event Event
	From  seqs.State
	To    seqs.State
}

func (t Transitioned) Changed() bool { return t.From != t.To }

func (cb *ControlBlock) State() seqs.State { return cb.state }

// Reset returns the block to CLOSED and clears the sequence space.
func (cb *ControlBlock) Reset() {
	*cb = ControlBlock{}
}

// Apply feeds ev through the transition table.
func (cb *ControlBlock) Apply(ev Event) Transitioned {
	t := Transitioned{Event: ev, From: cb.state, To: Transition(cb.state, ev)}
	cb.state = t.To
	if ev == EventConnect && t.Changed() && !cb.issSet {
		cb.initSend()
	}
	return t
}

func (cb *ControlBlock) initSend() {
	cb.iss = seqs.Value(rand.Uint32())
	cb.sndNxt = cb.iss
	cb.issSet = true
}

// Outgoing builds the header of the next control segment with flags set. SYN
// and FIN each consume one sequence number.
func (cb *ControlBlock) Outgoing(flags uint8, srcPort, dstPort uint16, window uint16) header.TCPFields {
	if flags&header.TCPFlagSyn != 0 && !cb.issSet {
		cb.initSend()
	}
	fields := header.TCPFields{
		SrcPort:    srcPort,
		DstPort:    dstPort,
		SeqNum:     uint32(cb.sndNxt),
		Flags:      flags,
		WindowSize: window,
	}
	if flags&header.TCPFlagAck != 0 {
		fields.AckNum = uint32(cb.rcvNxt)
	}
	if flags&(header.TCPFlagSyn|header.TCPFlagFin) != 0 {
		cb.sndNxt++
	}
	return fields
}

// Incoming records the sequence space of a received segment and applies the
// event raised by its flags.
func (cb *ControlBlock) Incoming(fields header.TCPFields) Transitioned {
	seq := seqs.Value(fields.SeqNum)
	if fields.Flags&header.TCPFlagSyn != 0 {
		cb.irs = seq
		cb.rcvNxt = seq + 1
	} else if fields.Flags&header.TCPFlagFin != 0 {
		cb.rcvNxt = seq + 1
	}
	return cb.Apply(EventFromFlags(fields.Flags))
}

// ISS and IRS expose the initial sequence numbers of the connection.
func (cb *ControlBlock) ISS() seqs.Value { return cb.iss }
func (cb *ControlBlock) IRS() seqs.Value { return cb.irs }

// SetState forces the state, bypassing the transition table. Used when a
// connection is synthesized directly into ESTABLISHED.
func (cb *ControlBlock) SetState(state seqs.State) {
	cb.state = state
}
