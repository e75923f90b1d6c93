// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"testing"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "Budget", 20, "Budget"},
		{"exact", "Budget", 6, "Budget"},
		{"ascii cut", "Award criteria weighting", 10, "Award c..."},
		{"umlaut kept whole", "Zuschlagskriterien und Gewichtung für Lose", 20, "Zuschlagskriterie..."},
		{"multibyte at cut", "Ausführungsfristen", 8, "Ausfü..."},
		{"tiny limit", "Leistungsverzeichnis", 2, "Le"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, utf8.RuneCountInString(got), tt.n)
		})
	}
}

type ctxKey struct{}

func TestCommandContext(t *testing.T) {
	cmd := &cobra.Command{}
	assert.NotNil(t, commandContext(cmd))

	ctx := context.WithValue(context.Background(), ctxKey{}, "run")
	cmd.SetContext(ctx)
	assert.Equal(t, "run", commandContext(cmd).Value(ctxKey{}))
}
