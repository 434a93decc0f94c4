package distmeta

import (
	"testing"

	"github.com/indygreg/pyembed-go/testutil"
)

type metadataSummary struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Requires []string `json:"requires"`
}

func TestParsedMetadataMatchesGolden(t *testing.T) {
	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	summary := metadataSummary{
		Name:     m.Name(),
		Version:  m.Version(),
		Requires: m.All("Requires-Dist"),
	}

	testutil.CompareWithGolden(t, "distmeta", "requests_summary", summary)
}
