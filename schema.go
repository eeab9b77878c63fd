// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package rehearse

import (
	"github.com/invopop/jsonschema"

	v0 "github.com/rehearse-dev/rehearse/schema/v0"
)

// SchemaURL is the canonical $id of the published meta schema
const SchemaURL = "https://raw.githubusercontent.com/rehearse-dev/rehearse/main/rehearse.schema.json"

// WorkflowSchema generates the JSON schema for the given schema version.
//
// Any other value produces the meta schema, which keys on the document's
// schema-version field so editors can validate every supported version.
func WorkflowSchema(version string) *jsonschema.Schema {
	if version == v0.SchemaVersion {
		return v0.WorkFlowSchema()
	}

	versioned := jsonschema.NewProperties()
	versioned.Set("schema-version", &jsonschema.Schema{
		Type: "string",
		Enum: []any{v0.SchemaVersion},
	})

	return &jsonschema.Schema{
		ID:      SchemaURL,
		Version: jsonschema.Version,
		If:      &jsonschema.Schema{Properties: versioned},
		Then:    v0.WorkFlowSchema(),
	}
}
