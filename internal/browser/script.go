package browser

import (
	"encoding/json"
	"fmt"
	"strings"
)

const scriptMarker = "// meetsync:"

// Script wraps a JavaScript function so it is called with JSON-encoded args.
// The first line names the script, which lets test pages dispatch on it.
func Script(name, fn string, args ...any) string {
	if args == nil {
		args = []any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		encoded = []byte("[]")
	}
	return fmt.Sprintf("%s%s\n(%s).apply(null, %s)", scriptMarker, name, strings.TrimSpace(fn), encoded)
}

// ScriptName returns the name given to Script, or "" for other scripts
func ScriptName(script string) string {
	if !strings.HasPrefix(script, scriptMarker) {
		return ""
	}
	line, _, _ := strings.Cut(script[len(scriptMarker):], "\n")
	return strings.TrimSpace(line)
}

// ScriptArgs decodes the arguments given to Script
func ScriptArgs(script string) ([]json.RawMessage, error) {
	idx := strings.LastIndex(script, ").apply(null, ")
	if idx < 0 {
		return nil, fmt.Errorf("script has no argument list")
	}
	raw := strings.TrimSuffix(script[idx+len(").apply(null, "):], ")")
	var args []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("failed to decode script arguments: %w", err)
	}
	return args, nil
}
