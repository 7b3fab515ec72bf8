// Package builder runs the project's firmware build and locates its output.
package builder

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/OpenTraceLab/boardctl/internal/logging"
	"github.com/OpenTraceLab/boardctl/pkg/tools"
)

// ErrNoArtifact is returned when the build leaves no image to load.
var ErrNoArtifact = errors.New("no build output available")

// Builder runs Command and reports Artifact.
type Builder struct {
	Runner   tools.Runner
	Command  []string
	Artifact string
}

// Build runs the build command, if any, and returns the artifact path.
func (b *Builder) Build(ctx context.Context) (string, error) {
	log := logging.For(logging.ComponentBuild)
	if len(b.Command) > 0 {
		log.Debug("building", "cmd", b.Command)
		if err := b.Runner.Run(ctx, b.Command[0], b.Command[1:]...); err != nil {
			return "", fmt.Errorf("build: %w", err)
		}
	}
	if b.Artifact == "" {
		return "", fmt.Errorf("%w: build.artifact is not configured", ErrNoArtifact)
	}
	fi, err := os.Stat(b.Artifact)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s does not exist", ErrNoArtifact, b.Artifact)
		}
		return "", fmt.Errorf("build: %w", err)
	}
	if fi.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNoArtifact, b.Artifact)
	}
	log.Debug("artifact", "path", b.Artifact, "size", fi.Size())
	return b.Artifact, nil
}
