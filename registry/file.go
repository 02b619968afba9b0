package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// fileDocument is the YAML layout of a registry file.
type fileDocument struct {
	Services []ServiceRecord `yaml:"services"`
}

// LoadFile reads and validates service records from a YAML file.
func LoadFile(path string) ([]ServiceRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	records, err := ParseRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return records, nil
}

// ParseRecords decodes and validates a YAML services document. Unknown fields
// are rejected.
func ParseRecords(data []byte) ([]ServiceRecord, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc fileDocument
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if err := validateSet(doc.Services); err != nil {
		return nil, err
	}

	return doc.Services, nil
}

// MarshalRecords encodes records as a YAML services document.
func MarshalRecords(records []ServiceRecord) ([]byte, error) {
	return yaml.Marshal(fileDocument{Services: records})
}
