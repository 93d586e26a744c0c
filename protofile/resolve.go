package protofile

import (
	"strings"

	"github.com/pkg/errors"
)

// resolveTypeName finds the entity a type reference in scope points to,
// following protobuf scoping: a leading dot means fully qualified, otherwise
// the innermost enclosing scope is searched first, then each outer one.
// Ref - https://github.com/protocolbuffers/protobuf/blob/b7a5772caf08d62a20fd1bca258f501fa4db022c/src/google/protobuf/descriptor.proto#L186-L191
func resolveTypeName(typeName, scope string, known func(string) bool) (string, error) {
	if strings.HasPrefix(typeName, ".") {
		name := strings.TrimPrefix(typeName, ".")
		if known(name) {
			return name, nil
		}
		return "", errors.Errorf("unable to resolve fully qualified type name: %s", typeName)
	}
	if name, ok := searchScopes(typeName, scope, known); ok {
		return name, nil
	}
	if known(typeName) {
		return typeName, nil
	}
	return "", errors.Errorf("unable to resolve type name %s in scope %s", typeName, scope)
}

// searchScopes appends typeName to scope and to each of its parents in turn
// until a known entity turns up.
func searchScopes(typeName, scope string, known func(string) bool) (string, bool) {
	if scope == "" {
		return "", false
	}
	parts := strings.Split(scope, ".")
	for len(parts) > 0 {
		name := strings.Join(parts, ".") + "." + typeName
		if known(name) {
			return name, true
		}
		// go one level up to the outer entity
		parts = parts[:len(parts)-1]
	}
	return "", false
}

func joinName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
