// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Command gen-schema writes the JSON Schema of every admin PATCH body to
// schemas/<resource>.patch.schema.json.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopfront/shopfront/internal/admin"
)

func main() {
	outDir := "schemas"
	if len(os.Args) > 1 {
		outDir = os.Args[1]
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	for _, res := range admin.Resources() {
		schema, err := admin.GenerateSchema(res)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating schema for %s: %v\n", res.Name, err)
			os.Exit(1)
		}
		outPath := filepath.Join(outDir, res.Name+".patch.schema.json")
		if err := os.WriteFile(outPath, schema, 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated %s\n", outPath)
	}
}
