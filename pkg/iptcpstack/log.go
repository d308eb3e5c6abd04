package iptcpstack

import (
	"os"
	"strconv"

	"github.com/soypat/seqs"
	"go.uber.org/zap"
)

// VERBOSE forces call tracing on regardless of configuration.
var VERBOSE, _ = strconv.ParseBool(os.Getenv("SIMTCP_VERBOSE"))

func newLogger(verbose bool) *zap.Logger {
	if !verbose && !VERBOSE {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// logCall traces a socket call with its arguments.
func (s *Stack) logCall(funcName string, args ...interface{}) {
	if ce := s.log.Check(zap.DebugLevel, funcName); ce != nil {
		ce.Write(zap.Any("args", args))
	}
}

func (s *Stack) logState(e *endpoint, from, to SocketState) {
	if from == to {
		return
	}
	s.log.Debug("socket state",
		zap.Int("handle", e.handle),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
}

func (s *Stack) logTCP(e *endpoint, from, to seqs.State) {
	if from == to {
		return
	}
	s.metrics.transitions.Inc()
	s.log.Debug("tcp state",
		zap.Int("handle", e.handle),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
}
