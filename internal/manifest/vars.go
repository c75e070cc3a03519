package manifest

import (
	"fmt"
	"strconv"

	"github.com/snowcapio/snowcap/internal/config"
	"github.com/snowcapio/snowcap/internal/snowerrors"
)

// bindVars merges the blueprint's supplied Vars against the manifest's
// own `vars:` section (a list of {name, type, default?} declarations,
// spec §6.1), applies defaults, and fails on a missing required var or
// a type mismatch, grounded on blueprint_config.py's set_vars_defaults.
func bindVars(doc map[string]any, blueprint *config.Blueprint) (map[string]any, error) {
	result := map[string]any{}
	for k, v := range blueprint.Vars {
		result[k] = v
	}

	rawSpecs, _ := doc["vars"].([]any)

	for _, raw := range rawSpecs {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, snowerrors.NewInvalidResourceError("", "each `vars` entry must be a mapping")
		}

		name, _ := entry["name"].(string)
		if name == "" {
			return nil, snowerrors.NewInvalidResourceError("", "`vars` entry is missing `name`")
		}

		typeName, _ := entry["type"].(string)

		vt := config.VarType(typeName)
		if vt == "" {
			vt = config.VarTypeString
		}

		if _, present := result[name]; present {
			if err := checkVarType(name, result[name], vt); err != nil {
				return nil, err
			}

			continue
		}

		def, hasDefault := entry["default"]
		if !hasDefault {
			return nil, snowerrors.NewMissingVarError(name)
		}

		result[name] = def
	}

	return result, nil
}

// checkVarType enforces that value matches the declared VarType,
// mirroring the original's type-mismatch TypeError.
func checkVarType(name string, value any, vt config.VarType) error {
	ok := false

	switch vt {
	case config.VarTypeString:
		_, ok = value.(string)
	case config.VarTypeInt:
		switch value.(type) {
		case int, int64:
			ok = true
		}
	case config.VarTypeBool:
		_, ok = value.(bool)
	case config.VarTypeFloat:
		switch value.(type) {
		case float64, float32:
			ok = true
		}
	case config.VarTypeList:
		_, ok = value.([]any)
	default:
		ok = true
	}

	if !ok {
		return snowerrors.NewInvalidResourceError("", fmt.Sprintf("var %q does not match declared type %s", name, vt))
	}

	return nil
}

// coerceIfInt converts a for_each-interpolated string into an int
// whenever it parses as a base-10 integer; the target field's type is
// not consulted.
func coerceIfInt(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}

	return n, true
}
