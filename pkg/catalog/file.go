// Package catalog works with collections of protocols: catalog documents on
// disk, search and expression filtering, id suggestions and table output.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

// File is a catalog document: the protocols served by the development
// service, each optionally carrying a scripted simulation.
type File struct {
	Protocols []Entry `yaml:"protocols" json:"protocols" jsonschema:"required"`
}

// Entry is one catalog protocol.
type Entry struct {
	protocol.Protocol `yaml:",inline"`
	Simulation        *Simulation `yaml:"simulation,omitempty" json:"simulation,omitempty"`
}

// Simulation scripts the result returned for simulated runs.
type Simulation struct {
	Status   string             `yaml:"status,omitempty"   json:"status,omitempty"`
	Delay    string             `yaml:"delay,omitempty"    json:"delay,omitempty"`
	Commands []SimulatedCommand `yaml:"commands,omitempty" json:"commands,omitempty"`
}

// SimulatedCommand is one scripted command outcome. String data values may
// reference run parameters as "{{name}}".
type SimulatedCommand struct {
	Name   string         `yaml:"name,omitempty"   json:"name,omitempty"`
	Status string         `yaml:"status,omitempty" json:"status,omitempty"`
	Errors []string       `yaml:"errors,omitempty" json:"errors,omitempty"`
	Data   map[string]any `yaml:"data,omitempty"   json:"data,omitempty"`
}

// LoadFile parses a catalog document. Files ending in .json are decoded as
// JSON; anything else as YAML. Unknown fields are rejected.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadJSON(f)
	}
	return Load(f)
}

// Load parses a YAML catalog document.
func Load(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cf File
	if err := dec.Decode(&cf); err != nil {
		if err == io.EOF {
			return &cf, nil
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &cf, nil
}

// LoadJSON parses a JSON catalog document.
func LoadJSON(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var cf File
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &cf, nil
}

// List returns the catalog protocols in document order.
func (f *File) List() []protocol.Protocol {
	out := make([]protocol.Protocol, len(f.Protocols))
	for i, e := range f.Protocols {
		out[i] = e.Protocol
	}
	return out
}

// Find returns the entry with the given id.
func (f *File) Find(id string) (*Entry, bool) {
	for i := range f.Protocols {
		if f.Protocols[i].ID == id {
			return &f.Protocols[i], true
		}
	}
	return nil, false
}
