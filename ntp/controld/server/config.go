/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package server

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// DefaultServerIPs is a default list of IPs server will bind to if nothing else is specified
var DefaultServerIPs = MultiIPs{net.ParseIP("127.0.0.1"), net.ParseIP("::1")}

// Config is a server config structure
type Config struct {
	IPs            MultiIPs `yaml:"ips"`
	Port           int      `yaml:"port"`
	MonitoringPort int      `yaml:"monitoringport"`
	KeysFile       string   `yaml:"keysfile"`
	ControlKeyID   uint32   `yaml:"controlkey"`
	MRUDepth       int      `yaml:"mrudepth"`
}

// MultiIPs is a wrapper allowing to set multiple IPs with flag parser
type MultiIPs []net.IP

// Set adds an ip to the list
func (m *MultiIPs) Set(ipaddr string) error {
	ip := net.ParseIP(ipaddr)
	if ip == nil {
		return fmt.Errorf("invalid ip address %s", ipaddr)
	}
	*m = append([]net.IP(*m), ip)
	return nil
}

// String returns joined list of IPs
func (m *MultiIPs) String() string {
	ips := make([]string, 0, len(*m))
	for _, ip := range *m {
		ips = append(ips, ip.String())
	}
	return strings.Join(ips, ", ")
}

// UnmarshalYAML accepts a list of address strings.
func (m *MultiIPs) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw []string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	for _, s := range raw {
		if err := m.Set(s); err != nil {
			return err
		}
	}
	return nil
}

// SetDefault assigns the default listen addresses
func (m *MultiIPs) SetDefault() {
	if len(*m) != 0 {
		return
	}
	*m = DefaultServerIPs
}

// ReadConfig merges a YAML config file into c.
func ReadConfig(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return errors.Wrap(err, "parsing config file")
	}
	return nil
}

// Validate checks if config is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MRUDepth < 0 {
		return fmt.Errorf("invalid mru depth %d", c.MRUDepth)
	}
	return nil
}
