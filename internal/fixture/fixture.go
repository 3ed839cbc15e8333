// Package fixture serves canned data: a YAML or JSON document used as the
// root value, with list values of subscription fields replayed as events.
package fixture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	executor "github.com/hanpama/graphedge/internal/executor"
)

// Load reads a data file. ".json", ".yaml" and ".yml" files are accepted.
func Load(path string) (map[string]any, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, errors.Errorf("fixture: unsupported data file extension %q", ext)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "fixture: read data file")
	}
	data, err := Parse(b)
	if err != nil {
		return nil, errors.Wrapf(err, "fixture: %s", path)
	}
	return data, nil
}

// Parse decodes a YAML or JSON document whose top level is a mapping. Keys
// that are not strings are formatted with fmt.
func Parse(b []byte) (map[string]any, error) {
	var raw any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	if raw == nil {
		return map[string]any{}, nil
	}
	data, ok := normalize(raw).(map[string]any)
	if !ok {
		return nil, errors.Errorf("top level must be a mapping, got %T", raw)
	}
	return data, nil
}

func normalize(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, item := range v {
			v[k] = normalize(item)
		}
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		for i, item := range v {
			v[i] = normalize(item)
		}
		return v
	}
	return v
}

// Runtime resolves fields from the data tree like executor.DefaultRuntime.
// A subscription field holding a list emits one event per element, Interval
// apart.
type Runtime struct {
	*executor.DefaultRuntime
	Interval time.Duration
}

var _ executor.Subscriber = (*Runtime)(nil)

func NewRuntime(interval time.Duration) *Runtime {
	return &Runtime{DefaultRuntime: executor.NewDefaultRuntime(), Interval: interval}
}

func (r *Runtime) Subscribe(ctx context.Context, objectType, field string, root any, args map[string]any) (<-chan any, error) {
	m, _ := root.(map[string]any)
	items, ok := m[field].([]any)
	if !ok || r.Interval <= 0 {
		return r.DefaultRuntime.Subscribe(ctx, objectType, field, root, args)
	}

	paced := make(chan any)
	go func() {
		defer close(paced)
		t := time.NewTicker(r.Interval)
		defer t.Stop()
		for i, item := range items {
			if i > 0 {
				select {
				case <-t.C:
				case <-ctx.Done():
					return
				}
			}
			select {
			case paced <- item:
			case <-ctx.Done():
				return
			}
		}
	}()
	return r.DefaultRuntime.Subscribe(ctx, objectType, field, map[string]any{field: (<-chan any)(paced)}, args)
}
