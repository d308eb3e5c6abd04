/*
Package tcpstack is the connection state machine of the simulated stack.

Only the transitions below are defined; any other (state, event) pair leaves
the state untouched.

	CLOSED      --listen-->   LISTEN
	CLOSED      --connect-->  SYN-SENT
	LISTEN      --rcv SYN-->  SYN-RCVD
	SYN-SENT    --rcv SYN,ACK--> ESTABLISHED
	SYN-RCVD    --rcv ACK-->  ESTABLISHED
	ESTABLISHED --rcv FIN-->  CLOSE-WAIT
	ESTABLISHED --close-->    FIN-WAIT-1
	FIN-WAIT-1  --rcv ACK-->  FIN-WAIT-2
	FIN-WAIT-1  --rcv FIN-->  CLOSING
	FIN-WAIT-2  --rcv FIN-->  TIME-WAIT
	CLOSE-WAIT  --close-->    LAST-ACK
	LAST-ACK    --rcv ACK-->  CLOSED
	CLOSING     --rcv ACK-->  TIME-WAIT
	TIME-WAIT   --timeout-->  CLOSED
*/
package tcpstack

import (
	"strconv"

	"github.com/google/netstack/tcpip/header"
	"github.com/soypat/seqs"
)

// Event is an input to the state machine, either a local request or the
// arrival of a control segment.
type Event uint8

const (
	EventNone Event = iota
	EventListen
	EventConnect
	EventSynReceived
	EventSynAckReceived
	EventAckReceived
	EventFinReceived
	EventClose
	EventTimeout
)

var eventNames = [...]string{
	EventNone:           "None",
	EventListen:         "Listen",
	EventConnect:        "Connect",
	EventSynReceived:    "SynReceived",
	EventSynAckReceived: "SynAckReceived",
	EventAckReceived:    "AckReceived",
	EventFinReceived:    "FinReceived",
	EventClose:          "Close",
	EventTimeout:        "Timeout",
}

func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return "Event(" + strconv.Itoa(int(e)) + ")"
}

type transitionKey struct {
	state seqs.State
	event Event
}

var transitions = map[transitionKey]seqs.State{
	{seqs.StateClosed, EventListen}:           seqs.StateListen,
	{seqs.StateClosed, EventConnect}:          seqs.StateSynSent,
	{seqs.StateListen, EventSynReceived}:      seqs.StateSynRcvd,
	{seqs.StateSynSent, EventSynAckReceived}:  seqs.StateEstablished,
	{seqs.StateSynRcvd, EventAckReceived}:     seqs.StateEstablished,
	{seqs.StateEstablished, EventFinReceived}: seqs.StateCloseWait,
	{seqs.StateEstablished, EventClose}:       seqs.StateFinWait1,
	{seqs.StateFinWait1, EventAckReceived}:    seqs.StateFinWait2,
	{seqs.StateFinWait1, EventFinReceived}:    seqs.StateClosing,
	{seqs.StateFinWait2, EventFinReceived}:    seqs.StateTimeWait,
	{seqs.StateCloseWait, EventClose}:         seqs.StateLastAck,
	{seqs.StateLastAck, EventAckReceived}:     seqs.StateClosed,
	{seqs.StateClosing, EventAckReceived}:     seqs.StateTimeWait,
	{seqs.StateTimeWait, EventTimeout}:        seqs.StateClosed,
}

// Transition returns the state reached from state on ev. Undefined pairs are
// no-ops and return state unchanged.
func Transition(state seqs.State, ev Event) seqs.State {
	if next, ok := transitions[transitionKey{state, ev}]; ok {
		return next
	}
	return state
}

// EventFromFlags maps the flags of a received segment to the event it raises.
func EventFromFlags(flags uint8) Event {
	syn := flags&header.TCPFlagSyn != 0
	ack := flags&header.TCPFlagAck != 0
	switch {
	case syn && ack:
		return EventSynAckReceived
	case syn:
		return EventSynReceived
	case flags&header.TCPFlagFin != 0:
		return EventFinReceived
	case ack:
		return EventAckReceived
	}
	return EventNone
}
