// Package datafile loads render data from JSON or HCL files.
//
// Both formats are read into cty values first and then converted to plain Go
// values (map[string]any, []any, float64, bool, string and nil), which is the
// shape directive hosts expect.
package datafile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/babago/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Load reads path and returns its contents as render data. The format is
// chosen by extension: .json, or .hcl for a file of top-level attributes.
func Load(ctx context.Context, path string) (any, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading data file.", "path", path)

	switch ext := filepath.Ext(path); ext {
	case ".json":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading data file: %w", err)
		}
		v, err := FromJSON(b)
		if err != nil {
			return nil, fmt.Errorf("data file %s: %w", path, err)
		}
		return v, nil
	case ".hcl":
		return loadHCL(path)
	default:
		return nil, fmt.Errorf("unsupported data file extension %q: %s", ext, path)
	}
}

// FromJSON decodes a JSON document into render data.
func FromJSON(b []byte) (any, error) {
	ty, err := ctyjson.ImpliedType(b)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	v, err := ctyjson.Unmarshal(b, ty)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return ToNative(v)
}

func loadHCL(path string) (any, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL data file %s: %w", path, diags)
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("HCL data file %s must contain only attributes: %w", path, diags)
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]any, len(attrs))
	for _, name := range names {
		val, diags := attrs[name].Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("evaluating %q in %s: %w", name, path, diags)
		}
		native, err := ToNative(val)
		if err != nil {
			return nil, fmt.Errorf("in attribute '%s': %w", name, err)
		}
		out[name] = native
	}
	return out, nil
}

// ToNative recursively converts a cty.Value to its most natural Go counterpart.
func ToNative(v cty.Value) (any, error) {
	// A nil or unknown value becomes a nil interface{}.
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()

	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert cty.Number to float64: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		slice := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, val := it.Element()
			nativeVal, err := ToNative(val)
			if err != nil {
				return nil, err
			}
			slice = append(slice, nativeVal)
		}
		return slice, nil

	case ty.IsObjectType() || ty.IsMapType():
		goMap := make(map[string]any)
		it := v.ElementIterator()
		for it.Next() {
			key, val := it.Element()
			keyStr := key.AsString()
			nativeVal, err := ToNative(val)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", keyStr, err)
			}
			goMap[keyStr] = nativeVal
		}
		return goMap, nil

	default:
		return nil, fmt.Errorf("unsupported cty type for data conversion: %s", ty.FriendlyName())
	}
}
