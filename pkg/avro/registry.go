// Package avro encodes records in the Confluent wire format: a zero magic
// byte, a big-endian schema id, then the Avro binary body.
package avro

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"

	"github.com/hamba/avro/v2"
	"github.com/riferrei/srclient"
	"golang.org/x/sync/singleflight"
)

const (
	magicByte  = 0
	headerSize = 5 // magic byte + schema id
)

type schemaEntry struct {
	id     int
	schema avro.Schema
}

// Registry caches parsed schemas from a schema registry by subject and id.
type Registry struct {
	client    srclient.ISchemaRegistryClient
	bySubject sync.Map // subject -> schemaEntry
	byID      sync.Map // id -> avro.Schema
	group     singleflight.Group
}

// NewRegistry connects to the schema registry at url.
func NewRegistry(url string) *Registry {
	return NewRegistryWithClient(srclient.CreateSchemaRegistryClient(url))
}

func NewRegistryWithClient(client srclient.ISchemaRegistryClient) *Registry {
	return &Registry{client: client}
}

func (r *Registry) remember(id int, schema avro.Schema, subject string) schemaEntry {
	se := schemaEntry{id: id, schema: schema}
	if subject != "" {
		r.bySubject.Store(subject, se)
	}
	r.byID.Store(id, schema)
	return se
}

func (r *Registry) forSubject(subject string) (schemaEntry, error) {
	if v, ok := r.bySubject.Load(subject); ok {
		return v.(schemaEntry), nil
	}
	v, err, _ := r.group.Do("subject:"+subject, func() (any, error) {
		meta, err := r.client.GetLatestSchema(subject)
		if err != nil {
			return nil, fmt.Errorf("fetch schema %s: %w", subject, err)
		}
		schema, err := avro.Parse(meta.Schema())
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", subject, err)
		}
		return r.remember(meta.ID(), schema, subject), nil
	})
	if err != nil {
		return schemaEntry{}, err
	}
	return v.(schemaEntry), nil
}

func (r *Registry) forID(id int) (avro.Schema, error) {
	if v, ok := r.byID.Load(id); ok {
		return v.(avro.Schema), nil
	}
	v, err, _ := r.group.Do(fmt.Sprintf("id:%d", id), func() (any, error) {
		meta, err := r.client.GetSchema(id)
		if err != nil {
			return nil, fmt.Errorf("fetch schema id %d: %w", id, err)
		}
		schema, err := avro.Parse(meta.Schema())
		if err != nil {
			return nil, fmt.Errorf("parse schema id %d: %w", id, err)
		}
		r.byID.Store(id, schema)
		return schema, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(avro.Schema), nil
}

// Encode marshals native with the latest schema of subject.
func (r *Registry) Encode(subject string, native map[string]any) ([]byte, error) {
	se, err := r.forSubject(subject)
	if err != nil {
		return nil, err
	}
	body, err := avro.Marshal(se.schema, native)
	if err != nil {
		return nil, fmt.Errorf("marshal for %s: %w", subject, err)
	}
	if se.id < 0 || se.id > 0xFFFFFFFF {
		return nil, fmt.Errorf("schema id %d out of uint32 range", se.id)
	}
	out := make([]byte, headerSize+len(body))
	out[0] = magicByte
	binary.BigEndian.PutUint32(out[1:headerSize], uint32(se.id)) //nolint:gosec // range checked above
	copy(out[headerSize:], body)
	return out, nil
}

// Decode unmarshals a wire-format payload with the schema its header names.
func (r *Registry) Decode(payload []byte) (map[string]any, error) {
	if len(payload) < headerSize || payload[0] != magicByte {
		return nil, fmt.Errorf("invalid wire format: missing magic byte or too short")
	}
	id := int(binary.BigEndian.Uint32(payload[1:headerSize]))
	schema, err := r.forID(id)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := avro.Unmarshal(schema, payload[headerSize:], &out); err != nil {
		return nil, fmt.Errorf("unmarshal for id %d: %w", id, err)
	}
	return out, nil
}

// EnsureSchema registers schemaJSON under subject unless an equivalent
// schema is already the latest version. A differing existing schema is
// kept and logged.
func (r *Registry) EnsureSchema(subject, schemaJSON string) error {
	want, err := avro.Parse(schemaJSON)
	if err != nil {
		return fmt.Errorf("parse schema %s: %w", subject, err)
	}

	existing, err := r.client.GetLatestSchema(subject)
	if err != nil {
		created, err := r.client.CreateSchema(subject, schemaJSON, srclient.Avro)
		if err != nil {
			return fmt.Errorf("register schema %s: %w", subject, err)
		}
		r.remember(created.ID(), want, subject)
		log.Printf("[Avro] Registered %s as schema %d", subject, created.ID())
		return nil
	}

	same, err := equivalent(existing.Schema(), schemaJSON)
	if err != nil {
		return err
	}
	if !same {
		log.Printf("[Avro] Schema for %s exists but differs, using the registered version", subject)
	}
	got, err := avro.Parse(existing.Schema())
	if err != nil {
		return fmt.Errorf("parse schema %s: %w", subject, err)
	}
	r.remember(existing.ID(), got, subject)
	return nil
}

// equivalent compares two schema documents ignoring key and field order.
func equivalent(a, b string) (bool, error) {
	na, err := normalizeSchemaJSON(a)
	if err != nil {
		return false, err
	}
	nb, err := normalizeSchemaJSON(b)
	if err != nil {
		return false, err
	}
	return na == nb, nil
}

func normalizeSchemaJSON(schemaJSON string) (string, error) {
	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		return "", fmt.Errorf("failed to parse schema JSON: %w", err)
	}
	out, err := json.Marshal(normalize(doc))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// normalize sorts record fields by name; encoding/json already sorts object
// keys.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		if fields, ok := out["fields"].([]any); ok {
			sorted := slices.Clone(fields)
			slices.SortStableFunc(sorted, func(a, b any) int {
				return strings.Compare(fieldName(a), fieldName(b))
			})
			out["fields"] = sorted
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

func fieldName(v any) string {
	m, _ := v.(map[string]any)
	name, _ := m["name"].(string)
	return name
}
