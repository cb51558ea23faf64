package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakao-autopilot/src/api"
	"kakao-autopilot/src/workflow"
)

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &cliOptions{}
	cmd := newRootCmd(opts, nil, nil)
	require.NoError(t, cmd.ParseFlags([]string{"--file", "-", "--json", "-v", "--profile", "/tmp/p.yaml", "--standalone"}))
	assert.Equal(t, "-", opts.filePath)
	assert.True(t, opts.jsonOutput)
	assert.True(t, opts.verbose)
	assert.True(t, opts.standalone)
	assert.Equal(t, "/tmp/p.yaml", opts.profilePath)
}

func TestReadRequest(t *testing.T) {
	var req api.SendMessagesRequest
	err := readRequest("-", strings.NewReader(`{"message_groups":[{"username":"Kim","messages":[{"type":"image","content":["/a.png","/b.png"]}]}]}`), &req)
	require.NoError(t, err)
	require.Len(t, req.MessageGroups, 1)
	assert.Equal(t, api.Content("/a.png,/b.png"), req.MessageGroups[0].Messages[0].Content)

	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))
	assert.ErrorContains(t, readRequest(path, nil, &req), "empty")

	assert.ErrorContains(t, readRequest("-", strings.NewReader("{"), &req), "invalid request JSON")
	assert.Error(t, readRequest(filepath.Join(t.TempDir(), "missing.json"), nil, &req))
}

func TestMissingFileFlag(t *testing.T) {
	err := run([]string{"autopilot", "add-friends"}, strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestWriteResults(t *testing.T) {
	resp := api.BatchResponse{
		BatchID: "b1",
		Results: []workflow.Result{
			{Key: "Kim", Status: workflow.StatusFail, Reason: "first message send failed: x", Items: []workflow.ItemResult{
				{Index: 0, Kind: workflow.KindText, Status: workflow.StatusFail, Reason: "x"},
			}},
		},
	}

	var text bytes.Buffer
	require.NoError(t, writeResults(&text, resp, false))
	assert.Contains(t, text.String(), "batch b1")
	assert.Contains(t, text.String(), "Kim")
	assert.Contains(t, text.String(), "#0 text")

	var out bytes.Buffer
	require.NoError(t, writeResults(&out, resp, true))
	var decoded api.BatchResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "b1", decoded.BatchID)
}
