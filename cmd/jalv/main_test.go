package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_parseControlValuesParsesWellFormedEntries(t *testing.T) {
	values := parseControlValues([]string{"gain=0.5", "mix=1"})
	assert.InDelta(t, 0.5, values["gain"], 1e-9)
	assert.InDelta(t, 1.0, values["mix"], 1e-9)
}

func Test_parseControlValuesSkipsMalformedEntries(t *testing.T) {
	values := parseControlValues([]string{"noequals", "gain=notanumber", "mix=0.25"})
	assert.NotContains(t, values, "noequals")
	assert.NotContains(t, values, "gain")
	assert.InDelta(t, 0.25, values["mix"], 1e-9)
}

func Test_translateExitMapsSentinelToZero(t *testing.T) {
	assert.Equal(t, 0, translateExit(earlyExitCode))
	assert.Equal(t, 1, translateExit(1))
	assert.Equal(t, 0, translateExit(0))
}

func Test_runReportsErrorWhenNoPositionalArgGiven(t *testing.T) {
	code := run([]string{})
	assert.Equal(t, 1, code)
}

func Test_runExitsEarlyOnHelpFlag(t *testing.T) {
	code := run([]string{"--help"})
	assert.Equal(t, 0, code)
}

func Test_runExitsEarlyOnVersionFlag(t *testing.T) {
	code := run([]string{"-V"})
	assert.Equal(t, 0, code)
}

func Test_runFailsWithoutAConfiguredLoader(t *testing.T) {
	code := run([]string{"urn:example:plugin"})
	assert.Equal(t, 1, code)
}
