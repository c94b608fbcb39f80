// Package srcmap reads, normalizes and rewrites version 3 source maps produced
// by stylesheet compilers.
package srcmap

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Map is version 3 source map. Order of fields is the order of output.
type Map struct {
	Version        int       `json:"version"`
	File           string    `json:"file,omitempty"`
	SourceRoot     string    `json:"sourceRoot,omitempty"`
	Sources        []string  `json:"sources"`
	SourcesContent []*string `json:"sourcesContent,omitempty"`
	Names          []string  `json:"names"`
	Mappings       string    `json:"mappings"`
}

// ParseError is returned when map text cannot be used.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "malformed source map: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse decodes source map JSON.
func Parse(data []byte) (*Map, error) {
	data = bytes.TrimSpace(data)
	// some tools protect maps from XSSI with this prefix
	data = bytes.TrimPrefix(data, []byte(")]}'"))

	m := &Map{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, &ParseError{Err: err}
	}
	if m.Version != 3 {
		return nil, &ParseError{Err: fmt.Errorf("unsupported version %d", m.Version)}
	}
	if m.Sources == nil {
		m.Sources = []string{}
	}
	if m.Names == nil {
		m.Names = []string{}
	}
	return m, nil
}

// MarshalIndent returns map JSON indented with two spaces.
func (m *Map) MarshalIndent() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("unable to encode source map: %w", err)
	}
	return data, nil
}

// Marshal returns compact map JSON.
func (m *Map) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("unable to encode source map: %w", err)
	}
	return data, nil
}

// Clone returns deep copy of the map.
func (m *Map) Clone() *Map {
	c := *m
	c.Sources = append([]string{}, m.Sources...)
	c.Names = append([]string{}, m.Names...)
	if m.SourcesContent != nil {
		c.SourcesContent = append([]*string{}, m.SourcesContent...)
	}
	return &c
}
