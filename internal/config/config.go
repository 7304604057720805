// Package config loads simctl client and simd daemon settings from toml.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/simctl/internal/transport"
)

// ClientConfig holds connection defaults for the simctl client.
type ClientConfig struct {
	Method          transport.Method
	Address         string
	SharedMemoryKey int
	ConnectTimeout  time.Duration
	CommandTimeout  time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Method:          transport.DirectLocal,
		Address:         "127.0.0.1:6667",
		SharedMemoryKey: transport.DefaultSharedMemoryKey,
		ConnectTimeout:  5 * time.Second,
		CommandTimeout:  20 * time.Second,
	}
}

// DaemonConfig holds listen addresses for simd.
type DaemonConfig struct {
	TCPAddr string
	UDPAddr string
}

func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		TCPAddr: ":6667",
		UDPAddr: ":6668",
	}
}

type clientFile struct {
	Method          string `toml:"method"`
	Address         string `toml:"address"`
	SharedMemoryKey int    `toml:"shared_memory_key"`
	ConnectTimeout  string `toml:"connect_timeout"`
	CommandTimeout  string `toml:"command_timeout"`
}

type daemonFile struct {
	TCPAddr string `toml:"tcp_addr"`
	UDPAddr string `toml:"udp_addr"`
}

func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	var raw clientFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("load client config: %w", err)
	}

	if meta.IsDefined("method") {
		m, err := transport.ParseMethod(raw.Method)
		if err != nil {
			return ClientConfig{}, fmt.Errorf("parse method: %w", err)
		}
		cfg.Method = m
	}
	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("shared_memory_key") {
		cfg.SharedMemoryKey = raw.SharedMemoryKey
	}
	if meta.IsDefined("connect_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ConnectTimeout))
		if err != nil {
			return ClientConfig{}, fmt.Errorf("parse connect_timeout: %w", err)
		}
		cfg.ConnectTimeout = d
	}
	if meta.IsDefined("command_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.CommandTimeout))
		if err != nil {
			return ClientConfig{}, fmt.Errorf("parse command_timeout: %w", err)
		}
		cfg.CommandTimeout = d
	}
	return cfg, nil
}

func LoadDaemonConfig(path string) (DaemonConfig, error) {
	cfg := DefaultDaemonConfig()

	var raw daemonFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return DaemonConfig{}, fmt.Errorf("load daemon config: %w", err)
	}

	if meta.IsDefined("tcp_addr") {
		cfg.TCPAddr = strings.TrimSpace(raw.TCPAddr)
	}
	if meta.IsDefined("udp_addr") {
		cfg.UDPAddr = strings.TrimSpace(raw.UDPAddr)
	}
	if cfg.TCPAddr == "" && cfg.UDPAddr == "" {
		return DaemonConfig{}, fmt.Errorf("daemon config: no listen address configured")
	}
	return cfg, nil
}

// Params converts the client config into transport connect params.
func (c ClientConfig) Params() transport.Params {
	return transport.Params{
		Address:         c.Address,
		SharedMemoryKey: c.SharedMemoryKey,
		ConnectTimeout:  c.ConnectTimeout,
		IOTimeout:       c.CommandTimeout,
	}
}
