// Package iptcpstack is an in-memory socket layer. A Stack owns every
// endpoint; sends resolve their destination by address and copy bytes
// straight into its receive buffer, and stream connections run a simplified
// TCP state machine driven by encoded control segments.
package iptcpstack

import (
	"sync"

	"SIM-TCP/pkg/lnxconfig"

	"github.com/google/btree"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const btreeDegree = 16

type Stack struct {
	mu sync.RWMutex

	config      *lnxconfig.StackConfig
	sockets     *btree.BTreeG[*endpoint]
	nextHandle  int
	initialized bool

	log     *zap.Logger
	metrics *metrics
}

type options struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
}

type Option func(*options)

// WithLogger replaces the logger derived from the configuration.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegisterer registers the stack metrics with reg. By default each stack
// gets a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// New builds an initialized stack. A nil config selects lnxconfig.Default.
func New(config *lnxconfig.StackConfig, opts ...Option) *Stack {
	if config == nil {
		config = lnxconfig.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = newLogger(config.Verbose)
	}
	if o.registerer == nil {
		o.registerer = prometheus.NewRegistry()
	}

	s := &Stack{
		config:  config,
		log:     o.logger,
		metrics: newMetrics(o.registerer),
	}
	s.Init()
	return s
}

// Init creates an empty registry. It is a no-op on a live stack.
func (s *Stack) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return
	}
	s.sockets = btree.NewG[*endpoint](btreeDegree, func(a, b *endpoint) bool {
		return a.handle < b.handle
	})
	s.nextHandle = firstHandle
	s.initialized = true
	s.log.Debug("stack initialized",
		zap.Int("send_buffer", s.config.SendBufferSize),
		zap.Int("recv_buffer", s.config.RecvBufferSize),
		zap.Int("backlog", s.config.DefaultBacklog),
	)
}

// Shutdown destroys every live endpoint and tears the registry down. The
// stack can be brought back with Init.
func (s *Stack) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return
	}
	for {
		e, ok := s.sockets.Min()
		if !ok {
			break
		}
		s.destroy(e)
	}
	s.sockets = nil
	s.initialized = false
	s.log.Debug("stack shut down")
}

// Live reports the number of registered endpoints.
func (s *Stack) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return 0
	}
	return s.sockets.Len()
}

// Config returns the configuration the stack was built with.
func (s *Stack) Config() lnxconfig.StackConfig {
	return *s.config
}

func (s *Stack) ready() error {
	if !s.initialized {
		return errors.Wrap(ErrGeneral, "stack not initialized")
	}
	return nil
}
