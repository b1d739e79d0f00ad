package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_Help(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	logs := &bytes.Buffer{}

	err := run(out, logs, strings.NewReader(""), []string{"stratus", "--help"})

	require.NoError(t, err, "run() should return a nil error for --help")
	require.Contains(t, out.String(), "USAGE", "expected help text on stdout")
	require.Contains(t, out.String(), "deploy", "help should list the deploy command")
}

func TestRun_UnknownFlag(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	logs := &bytes.Buffer{}

	err := run(out, logs, strings.NewReader(""), []string{"stratus", "--this-is-not-a-valid-flag"})

	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined")
}
