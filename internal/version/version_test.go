package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMetadataInitialized(t *testing.T) {
	// All build metadata defaults to "unknown" until set via ldflags.
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, BuildTime)
	assert.NotEmpty(t, GitCommit)
}
