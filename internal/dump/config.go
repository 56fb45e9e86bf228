package dump

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the nbtdump CLI configuration.
type Config struct {
	In           string `json:"in"`            // input path or go-getter URL
	Out          string `json:"out"`           // output path; empty means print only
	Fetch        bool   `json:"fetch"`         // resolve In through go-getter first
	Print        bool   `json:"print"`         // pretty-print the loaded tree
	Indent       string `json:"indent"`        // pretty-print indent string
	Compression  string `json:"compression"`   // output framing: none, gzip, zlib
	LittleEndian bool   `json:"little_endian"` // read and write little-endian
	Skip         string `json:"skip"`          // comma-separated tag names to prune
	BufferSize   int    `json:"buffer_size"`   // read buffer; 0 means unbuffered
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Print:       true,
		Indent:      "  ",
		Compression: "gzip",
		BufferSize:  8192,
	}
}

// Load reads a JSON config file into cfg. A missing file leaves cfg
// unchanged.
func Load(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Merge applies file-loaded config values into cfg, but only for fields
// that were NOT explicitly set via CLI flags. explicitFlags contains the
// flag names that were explicitly provided on the command line.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	if !explicitFlags["in"] {
		cfg.In = fromFile.In
	}
	if !explicitFlags["out"] {
		cfg.Out = fromFile.Out
	}
	if !explicitFlags["fetch"] {
		cfg.Fetch = fromFile.Fetch
	}
	if !explicitFlags["print"] {
		cfg.Print = fromFile.Print
	}
	if !explicitFlags["indent"] {
		cfg.Indent = fromFile.Indent
	}
	if !explicitFlags["compression"] {
		cfg.Compression = fromFile.Compression
	}
	if !explicitFlags["little-endian"] {
		cfg.LittleEndian = fromFile.LittleEndian
	}
	if !explicitFlags["skip"] {
		cfg.Skip = fromFile.Skip
	}
	if !explicitFlags["buffer-size"] {
		cfg.BufferSize = fromFile.BufferSize
	}
}
