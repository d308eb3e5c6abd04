// Package lnxconfig loads the tunables of a simulated socket stack from an
// ini file.
//
//	[buffers]
//	send = 8192
//	recv = 8192
//
//	[listen]
//	default_backlog = 128
//	max_backlog = 128
//
//	[ephemeral]
//	base = 32768
//	attempts = 1000
//
//	[log]
//	verbose = false
package lnxconfig

import (
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

const (
	DefaultBufferSize        = 8192
	DefaultBacklog           = 128
	MaxBacklog               = 128
	DefaultEphemeralBase     = 32768
	DefaultEphemeralAttempts = 1000
)

type StackConfig struct {
	SendBufferSize int
	RecvBufferSize int

	DefaultBacklog int
	MaxBacklog     int

	EphemeralBase     uint16
	EphemeralAttempts int

	Verbose bool
}

// Default returns the built-in configuration.
func Default() *StackConfig {
	return &StackConfig{
		SendBufferSize:    DefaultBufferSize,
		RecvBufferSize:    DefaultBufferSize,
		DefaultBacklog:    DefaultBacklog,
		MaxBacklog:        MaxBacklog,
		EphemeralBase:     DefaultEphemeralBase,
		EphemeralAttempts: DefaultEphemeralAttempts,
	}
}

// ParseConfig reads the file at path. Missing sections and keys keep their
// default values.
func ParseConfig(path string) (*StackConfig, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	return parse(file)
}

// ParseBytes is ParseConfig for an in-memory file.
func ParseBytes(data []byte) (*StackConfig, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	return parse(file)
}

func parse(file *ini.File) (*StackConfig, error) {
	config := Default()

	buffers := file.Section("buffers")
	config.SendBufferSize = buffers.Key("send").MustInt(config.SendBufferSize)
	config.RecvBufferSize = buffers.Key("recv").MustInt(config.RecvBufferSize)

	listen := file.Section("listen")
	config.DefaultBacklog = listen.Key("default_backlog").MustInt(config.DefaultBacklog)
	config.MaxBacklog = listen.Key("max_backlog").MustInt(config.MaxBacklog)

	ephemeral := file.Section("ephemeral")
	base := ephemeral.Key("base").MustUint(uint(config.EphemeralBase))
	if base == 0 || base > 65535 {
		return nil, errors.Errorf("ephemeral base %d out of range", base)
	}
	config.EphemeralBase = uint16(base)
	config.EphemeralAttempts = ephemeral.Key("attempts").MustInt(config.EphemeralAttempts)

	config.Verbose = file.Section("log").Key("verbose").MustBool(false)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks that every size and count is usable.
func (c *StackConfig) Validate() error {
	switch {
	case c.SendBufferSize <= 0:
		return errors.Errorf("send buffer size must be positive, got %d", c.SendBufferSize)
	case c.RecvBufferSize <= 0:
		return errors.Errorf("recv buffer size must be positive, got %d", c.RecvBufferSize)
	case c.MaxBacklog <= 0:
		return errors.Errorf("max backlog must be positive, got %d", c.MaxBacklog)
	case c.DefaultBacklog <= 0 || c.DefaultBacklog > c.MaxBacklog:
		return errors.Errorf("default backlog %d not in 1..%d", c.DefaultBacklog, c.MaxBacklog)
	case c.EphemeralBase == 0:
		return errors.New("ephemeral base must be non-zero")
	case c.EphemeralAttempts <= 0:
		return errors.Errorf("ephemeral attempts must be positive, got %d", c.EphemeralAttempts)
	}
	return nil
}

// ClampBacklog applies the listen(2) backlog rule: non-positive values select
// the default and anything above the maximum is capped.
func (c *StackConfig) ClampBacklog(n int) int {
	if n <= 0 {
		return c.DefaultBacklog
	}
	if n > c.MaxBacklog {
		return c.MaxBacklog
	}
	return n
}
