// Package config provides environment-variable binding for process
// configuration (mirroring the teacher's reflection-over-"env"-tags
// approach) and the Blueprint type that mirrors the original
// BlueprintConfig dataclass.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// GetenvOrDefault returns os.Getenv(key), or defaultValue when unset/blank.
func GetenvOrDefault(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return os.Getenv(key)
	}

	return defaultValue
}

// GetenvBoolOrDefault parses os.Getenv(key) as a bool, or returns defaultValue.
func GetenvBoolOrDefault(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}

	return v
}

// GetenvIntOrDefault parses os.Getenv(key) as an int64, or returns defaultValue.
func GetenvIntOrDefault(key string, defaultValue int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return defaultValue
	}

	return v
}

// LoadDotEnv loads a .env file once per process when ENV_NAME is "local"
// (or unset), mirroring InitLocalEnvConfig. It is not an error for the
// file to be absent.
func LoadDotEnv() {
	envName := GetenvOrDefault("ENV_NAME", "local")
	if envName != "local" {
		return
	}

	_ = godotenv.Load()
}

// SetFromEnvVars populates the fields of the struct pointed to by s using
// each field's `env:"NAME"` tag. Supported kinds: string, bool, and the
// integer family. s must be a non-nil pointer to a struct.
func SetFromEnvVars(s any) error {
	v := reflect.ValueOf(s)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errors.New("s must be a non-nil pointer to a struct")
	}

	elem := v.Elem()
	t := elem.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag, ok := field.Tag.Lookup("env")
		if !ok {
			continue
		}

		name := strings.Split(tag, ",")[0]

		fv := elem.Field(i)
		if !fv.CanSet() {
			continue
		}

		switch fv.Kind() {
		case reflect.Bool:
			fv.SetBool(GetenvBoolOrDefault(name, false))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			fv.SetInt(GetenvIntOrDefault(name, 0))
		default:
			if v, present := os.LookupEnv(name); present {
				fv.SetString(v)
			} else if def, ok := field.Tag.Lookup("envDefault"); ok {
				fv.SetString(def)
			}
		}
	}

	return nil
}

// EnsureFromEnvVars is SetFromEnvVars but panics on error, for call sites
// that cannot meaningfully recover (mirrors EnsureConfigFromEnvVars).
func EnsureFromEnvVars(s any) any {
	if err := SetFromEnvVars(s); err != nil {
		panic(fmt.Sprintf("snowcap: invalid config target: %v", err))
	}

	return s
}
