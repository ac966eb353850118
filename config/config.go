// config.go - cmd/duskchand's flat TOML configuration.
// Copyright (C) 2026  the duskchan authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config loads cmd/duskchand's configuration. The core library
// packages (wire, readpump, handshake, securechan) take no dependency
// on this package; they are always constructed from explicit Go
// values.
package config

import "github.com/BurntSushi/toml"

// Config is the demo binary's configuration file shape.
type Config struct {
	// ListenAddr, if non-empty, makes duskchand accept connections on
	// this address.
	ListenAddr string `toml:"listen_addr"`
	// DialAddr, if non-empty, makes duskchand dial this address.
	DialAddr string `toml:"dial_addr"`
	// LogLevel is a charmbracelet/log level name: debug, info, warn,
	// error.
	LogLevel string `toml:"log_level"`
	// MetricsAddr, if non-empty, serves Prometheus metrics on this
	// address.
	MetricsAddr string `toml:"metrics_addr"`
	// LedgerPath, if non-empty, opens a handshake audit ledger at this
	// path.
	LedgerPath string `toml:"ledger_path"`
}

// Default returns a Config with the demo binary's fallback values.
func Default() Config {
	return Config{
		LogLevel: "info",
	}
}

// Load decodes path as TOML into a Config seeded with Default.
func Load(path string) (Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, &cfg)
	return cfg, err
}
