// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRuntime is a container.Runtime that echoes a fixed reply.
type stubRuntime struct {
	images   map[string]bool
	reply    string
	runErr   error
	gotImage string
	gotArgs  []string
	gotInput string
}

func (s *stubRuntime) Name() string { return "stub" }

func (s *stubRuntime) Available(context.Context) bool { return true }

func (s *stubRuntime) ImageExists(_ context.Context, image string) error {
	if s.images[image] {
		return nil
	}
	return errors.New("no such image")
}

func (s *stubRuntime) Run(_ context.Context, image string, args []string, stdin io.Reader, stdout io.Writer) error {
	s.gotImage, s.gotArgs = image, args
	data, _ := io.ReadAll(stdin)
	s.gotInput = string(data)
	if s.runErr != nil {
		return s.runErr
	}
	_, err := io.WriteString(stdout, s.reply)
	return err
}

func TestNewMarkitdownConverter(t *testing.T) {
	rt := &stubRuntime{images: map[string]bool{DefaultImage: true}}

	m, err := NewMarkitdownConverter(context.Background(), rt, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultImage, m.image)

	_, err = NewMarkitdownConverter(context.Background(), rt, "custom/markitdown:1.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available in stub")
}

func TestMarkitdownConvert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Tender.PDF")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7"), 0o644))

	rt := &stubRuntime{images: map[string]bool{DefaultImage: true}, reply: "# Tender\n"}
	m, err := NewMarkitdownConverter(context.Background(), rt, "")
	require.NoError(t, err)

	md, err := m.Convert(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "# Tender\n", md)
	assert.Equal(t, DefaultImage, rt.gotImage)
	assert.Equal(t, []string{"-x", "pdf"}, rt.gotArgs)
	assert.Equal(t, "%PDF-1.7", rt.gotInput)

	rt.reply = "  \n"
	_, err = m.Convert(context.Background(), path)
	assert.ErrorContains(t, err, "empty output")

	rt.runErr = errors.New("exit status 2")
	_, err = m.Convert(context.Background(), path)
	assert.ErrorContains(t, err, "converting")

	_, err = m.Convert(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorContains(t, err, "opening")
}
