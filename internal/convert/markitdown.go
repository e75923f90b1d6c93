// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/bid-engine/internal/container"
)

// DefaultImage is the markitdown image used when none is configured.
const DefaultImage = "markitdown:latest"

// MarkitdownConverter pipes attachments through the markitdown container
// image on a docker or podman runtime.
type MarkitdownConverter struct {
	runtime container.Runtime
	image   string
}

// NewMarkitdownConverter checks that image exists locally and returns a
// converter that runs it. An empty image selects DefaultImage.
func NewMarkitdownConverter(ctx context.Context, rt container.Runtime, image string) (*MarkitdownConverter, error) {
	if image == "" {
		image = DefaultImage
	}
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &MarkitdownConverter{runtime: rt, image: image}, nil
}

// Convert streams the file at path into the container and returns the
// Markdown it prints. markitdown reads stdin without a file name, so the
// extension is passed as a hint.
func (m *MarkitdownConverter) Convert(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	var out bytes.Buffer
	if err := m.runtime.Run(ctx, m.image, []string{"-x", ext}, f, &out); err != nil {
		return "", fmt.Errorf("converting %s with markitdown: %w", path, err)
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", fmt.Errorf("markitdown produced empty output for %s", path)
	}
	return out.String(), nil
}
