package core

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestCoreImportsNoTransport ensures the reducer core stays free of transport
// and infrastructure dependencies. The store is driven through Apply and the
// Gateway/bus layers depend on it, never the other way around.
func TestCoreImportsNoTransport(t *testing.T) {
	forbidden := []string{
		"planningsync/internal/gateway",
		"planningsync/internal/bus",
		"planningsync/internal/dispatch",
		"planningsync/internal/mirror",
		"planningsync/internal/blob",
		"planningsync/internal/config",
		"planningsync/internal/infra",
	}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, "planningsync/internal/core", "planningsync/pkg/domain")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	var violations []string
	for _, pkg := range pkgs {
		for importPath := range pkg.Imports {
			for _, prefix := range forbidden {
				if importPath == prefix || strings.HasPrefix(importPath, prefix+"/") {
					violations = append(violations, pkg.PkgPath+": "+importPath)
				}
			}
		}
	}

	sort.Strings(violations)
	for _, v := range violations {
		t.Errorf("forbidden import in core layer: %s", v)
	}
}
