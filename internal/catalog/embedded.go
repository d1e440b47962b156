package catalog

import (
	_ "embed"

	"github.com/4sighteducation/vespa-activities-api/internal/models"
)

//go:embed data/activities.json
var embeddedData []byte

// EmbeddedActivities returns the built-in default catalog, the terminal
// state after every content source has been exhausted.
func EmbeddedActivities() []models.Activity {
	activities, err := ParseFallbackDocument(embeddedData)
	if err != nil {
		// The embedded document ships with the binary and is covered by
		// tests; failing to parse it is a build defect.
		panic(err)
	}

	return activities
}
