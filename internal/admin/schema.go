// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package admin

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/samber/oops"
)

// CodePatchInvalid marks a PATCH body that fails schema validation.
const CodePatchInvalid = "ADMIN_PATCH_INVALID"

var (
	compiledMu sync.Mutex
	compiled   = map[string]*jschema.Schema{}
)

// GenerateSchema returns the JSON Schema for res's PATCH body.
func GenerateSchema(res *Resource) ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}
	schema := r.Reflect(res.NewPatch())
	schema.Title = "Shopfront " + res.Name + " patch"
	schema.Description = "PATCH /api/admin/" + res.Name + " request body"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("ADMIN_SCHEMA_FAILED").With("resource", res.Name).Wrap(err)
	}
	return data, nil
}

func compiledSchema(res *Resource) (*jschema.Schema, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()
	if sch, ok := compiled[res.Name]; ok {
		return sch, nil
	}

	data, err := GenerateSchema(res)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, oops.Code("ADMIN_SCHEMA_FAILED").With("resource", res.Name).Wrap(err)
	}

	url := res.Name + ".schema.json"
	c := jschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, oops.Code("ADMIN_SCHEMA_FAILED").With("resource", res.Name).Wrap(err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, oops.Code("ADMIN_SCHEMA_FAILED").With("resource", res.Name).Wrap(err)
	}
	compiled[res.Name] = sch
	return sch, nil
}

// DecodePatch validates body against res's schema and decodes it.
func DecodePatch(res *Resource, body []byte) (Patch, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, oops.Code(CodePatchInvalid).With("resource", res.Name).Errorf("body is not valid JSON")
	}

	sch, err := compiledSchema(res)
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(doc); err != nil {
		return nil, oops.Code(CodePatchInvalid).
			With("resource", res.Name).
			Errorf("%s", formatValidationError(err))
	}

	patch := res.NewPatch()
	if err := json.Unmarshal(body, patch); err != nil {
		return nil, oops.Code(CodePatchInvalid).With("resource", res.Name).Wrap(err)
	}
	return patch, nil
}

// formatValidationError flattens the validator's multi-line report to its
// "at '<path>': <problem>" lines.
func formatValidationError(err error) string {
	lines := strings.Split(err.Error(), "\n")
	var msgs []string
	for _, l := range lines[1:] {
		l = strings.TrimSpace(l)
		l = strings.TrimSpace(strings.TrimPrefix(l, "- "))
		if l != "" {
			msgs = append(msgs, l)
		}
	}
	if len(msgs) == 0 {
		return lines[0]
	}
	return strings.Join(msgs, "; ")
}
