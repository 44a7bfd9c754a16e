package main

import (
	"bytes"
	rtdebug "runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintVersion_UsesBuildInfo(t *testing.T) {
	var buf bytes.Buffer
	printVersion(&buf, &rtdebug.BuildInfo{Settings: []rtdebug.BuildSetting{
		{Key: "vcs.revision", Value: "abc123"},
		{Key: "vcs.time", Value: "2025-03-01T12:00:00Z"},
	}})

	out := buf.String()
	assert.Contains(t, out, "InvesteAI dev")
	assert.Contains(t, out, "Git commit: abc123")
	assert.Contains(t, out, "Build time: 2025-03-01T12:00:00Z")
	assert.Contains(t, out, "Go:")
}

func TestPrintVersion_LinkerValuesWin(t *testing.T) {
	old := GitCommit
	GitCommit = "deadbeef"
	t.Cleanup(func() { GitCommit = old })

	var buf bytes.Buffer
	printVersion(&buf, &rtdebug.BuildInfo{Settings: []rtdebug.BuildSetting{
		{Key: "vcs.revision", Value: "abc123"},
	}})

	assert.Contains(t, buf.String(), "Git commit: deadbeef")
	assert.Contains(t, buf.String(), "Build time: unknown")
}

func TestPrintVersion_NoBuildInfo(t *testing.T) {
	var buf bytes.Buffer
	printVersion(&buf, nil)

	assert.Contains(t, buf.String(), "Git commit: unknown")
}
