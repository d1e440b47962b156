package catalog

import "github.com/santhosh-tekuri/jsonschema/v5"

// fallbackSchema validates the shape of externally hosted activity
// documents before they are trusted as catalog data.
const fallbackSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["Activities Name", "VESPA Category"],
		"properties": {
			"Activities Name": {"type": "string", "minLength": 1},
			"Activity_id": {"type": "string"},
			"VESPA Category": {"type": "string", "minLength": 1},
			"Level": {"type": ["string", "number"]},
			"background_content": {"type": "string"},
			"media": {"type": "object"}
		}
	}
}`

var compiledSchema = jsonschema.MustCompileString("activities.schema.json", fallbackSchema)
