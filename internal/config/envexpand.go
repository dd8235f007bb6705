package config

import "os"

// ExpandEnv expands ${VAR}/$VAR references in YAML content using the
// standard library, the same approach as tarsy's pkg/config/envexpand.go.
// Missing variables expand to empty string; validation catches required
// fields left empty by that.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
