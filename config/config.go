// Package config holds the broker's static configuration tree (spec §6),
// expressed as a plain Go struct since TOML loading is an explicit
// Non-goal. LoadYAML backs it with a real decode-from-file path using the
// teacher's indirect yaml dependency, promoted to direct use here.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the broker's configuration tree.
type Config struct {
	MQTT MQTT `yaml:"mqtt"`
}

// MQTT groups the listener bindings and numeric settings spec §6 names.
type MQTT struct {
	Listener Listener `yaml:"listener"`
	Settings Settings `yaml:"settings"`
}

// Listener carries one bind config per transport. A zero-value sub-struct
// (empty Host) means that transport is not started.
type Listener struct {
	TCP    TCPListener `yaml:"tcp"`
	TCPTLS TLSListener `yaml:"tcp_tls"`
	WS     WSListener  `yaml:"ws"`
	WSS    WSSListener `yaml:"wss"`
}

type TCPListener struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TLSListener struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	CertPath string `yaml:"cert_path"`
	KeyPath  string `yaml:"key_path"`
}

type WSListener struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

type WSSListener struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Path     string `yaml:"path"`
	CertPath string `yaml:"cert_path"`
	KeyPath  string `yaml:"key_path"`
}

// Settings are the numeric caps spec §6 "mqtt.settings" names, used to
// clamp client-requested MQTT v5 values.
type Settings struct {
	MaxTopicLength        int           `yaml:"max_topic_length"`
	SessionExpiryInterval uint32        `yaml:"session_expiry_interval"`
	KeepAlive             uint16        `yaml:"keep_alive"`
	MaxReceiveQueue       uint16        `yaml:"max_receive_queue"`
	MaxPacketSize         uint32        `yaml:"max_packet_size"`
	ResendInterval        time.Duration `yaml:"resend_interval"`
	MaxStoreMsgsPerClient int           `yaml:"max_store_msgs_per_client"`
}

// Default returns the configuration the source (letoille/AxonMQ) ships
// when no file is present: TCP only, bound on all interfaces, generous caps.
func Default() Config {
	return Config{
		MQTT: MQTT{
			Listener: Listener{
				TCP: TCPListener{Host: "0.0.0.0", Port: 1883},
			},
			Settings: Settings{
				MaxTopicLength:        65535,
				SessionExpiryInterval: 0,
				KeepAlive:             60,
				MaxReceiveQueue:       128,
				MaxPacketSize:         1 << 20,
				ResendInterval:        5 * time.Second,
				MaxStoreMsgsPerClient: 1000,
			},
		},
	}
}

// LoadYAML reads and decodes a Config from path, starting from Default()
// so a partial file only overrides what it names.
func LoadYAML(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}
