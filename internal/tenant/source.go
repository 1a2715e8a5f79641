package tenant

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source supplies tenant snapshots from the control plane.
type Source interface {
	Load(ctx context.Context) ([]Record, error)
}

// fileRecord mirrors Record but additionally accepts a plaintext api_key,
// hashed on load. Only meant for standalone and development deployments.
type fileRecord struct {
	Record `yaml:",inline"`
	APIKey string `yaml:"api_key"`
}

type tenantFile struct {
	Instances []fileRecord `yaml:"instances"`
}

// FileSource loads the tenant table from a YAML file.
type FileSource struct {
	Path string
}

func (s *FileSource) Load(_ context.Context) ([]Record, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read tenant file: %w", err)
	}

	var f tenantFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse tenant file %s: %w", s.Path, err)
	}

	records := make([]Record, 0, len(f.Instances))
	for i, in := range f.Instances {
		rec := in.Record
		if rec.InstanceID == "" {
			return nil, fmt.Errorf("tenant file %s: instance %d has no instance_id", s.Path, i)
		}
		if rec.BackendAddr == "" {
			return nil, fmt.Errorf("tenant file %s: instance %s has no backend_addr", s.Path, rec.InstanceID)
		}
		if rec.APIKeyHash == "" && in.APIKey != "" {
			rec.APIKeyHash = HashAPIKey(in.APIKey)
		}
		if rec.APIKeyHash == "" {
			return nil, fmt.Errorf("tenant file %s: instance %s has no api_key_hash or api_key", s.Path, rec.InstanceID)
		}
		if rec.Status == "" {
			rec.Status = StatusRunning
		}
		records = append(records, rec)
	}
	return records, nil
}

// StaticSource serves a fixed snapshot. Used by tests.
type StaticSource struct {
	Records []Record
}

func (s *StaticSource) Load(_ context.Context) ([]Record, error) {
	return s.Records, nil
}
