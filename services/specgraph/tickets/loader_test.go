// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tickets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const objectFile = `{
	// implementation tickets for auth
	"tickets": [
		{
			"id": "T-1",
			"ref": "auth.login.basic-auth",
			"description": "hash passwords",
			"status": "complete",
			"constraints_satisfied": ["bcrypt"],
			"implementation": {
				"files": ["auth/hash.go"],
				"tests": ["auth/hash_test.go"],
			},
		},
		/* second ticket */
		{"id": "T-2", "ref": "auth.login.basic-auth", "status": "in-progress", "constraints_satisfied": []},
	],
}`

func TestLoader_Parse(t *testing.T) {
	l := NewLoader()

	t.Run("object form with comments", func(t *testing.T) {
		tickets, err := l.Parse("auth.tickets.json", []byte(objectFile))
		require.NoError(t, err)
		require.Len(t, tickets, 2)

		first := tickets[0]
		assert.Equal(t, "T-1", first.ID)
		assert.Equal(t, StatusComplete, first.Status)
		assert.Equal(t, []string{"bcrypt"}, first.ConstraintsSatisfied)
		assert.Equal(t, []string{"auth/hash.go"}, first.Files())
		assert.Equal(t, []string{"auth/hash_test.go"}, first.Tests())
		assert.Equal(t, "auth.tickets.json", first.Source)

		assert.Nil(t, tickets[1].Files())
		assert.Equal(t, StatusInProgress, tickets[1].Status)
	})

	t.Run("bare array", func(t *testing.T) {
		tickets, err := l.Parse("x.json", []byte(`[{"id":"A","ref":"r","status":"pending"}]`))
		require.NoError(t, err)
		require.Len(t, tickets, 1)
		assert.Equal(t, StatusPending, tickets[0].Status)
	})

	t.Run("empty array", func(t *testing.T) {
		tickets, err := l.Parse("x.json", []byte(`{"tickets": []}`))
		require.NoError(t, err)
		assert.NotNil(t, tickets)
		assert.Empty(t, tickets)
	})
}

func TestLoader_ParseInvalidRecords(t *testing.T) {
	l := NewLoader()
	data := `[
		{"id": "ok", "ref": "a.b", "status": "complete"},
		{"id": "", "ref": "a.b", "status": "complete"},
		{"id": "bad-status", "ref": "a.b", "status": "done"},
		{"id": "no-ref", "status": "pending"},
		{"id": 7},
		{"id": "ok-2", "ref": "a.c", "status": "obsolete"}
	]`

	tickets, err := l.Parse("t.json", []byte(data))

	require.Error(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "ok", tickets[0].ID)
	assert.Equal(t, "ok-2", tickets[1].ID)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "t.json", loadErr.Source)
	assert.Len(t, loadErr.Errors, 4)
	assert.ErrorIs(t, err, ErrInvalidTicket)
	assert.Contains(t, loadErr.ErrorList(), "ticket[2]")
	assert.Contains(t, err.Error(), "4 errors")
}

func TestLoader_ParseInvalidFile(t *testing.T) {
	l := NewLoader()

	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `tickets: []`},
		{name: "missing tickets key", data: `{"items": []}`},
		{name: "tickets not an array", data: `{"tickets": {}}`},
		{name: "empty", data: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tickets, err := l.Parse("f.json", []byte(tt.data))
			assert.Nil(t, tickets)
			assert.ErrorIs(t, err, ErrInvalidTicketFile)
		})
	}
}

func TestLoader_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.tickets.json")
	require.NoError(t, os.WriteFile(path, []byte(objectFile), 0o644))

	l := NewLoader()
	tickets, err := l.LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
	assert.Equal(t, path, tickets[0].Source)

	_, err = l.LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
