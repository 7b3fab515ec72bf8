package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/boardctl/pkg/tools"
)

type runner struct {
	calls [][]string
	err   error
	// writes is created when the build runs.
	writes string
}

func (r *runner) Run(_ context.Context, name string, args ...string) error {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.writes != "" {
		if err := os.WriteFile(r.writes, []byte("ELF"), 0o644); err != nil {
			return err
		}
	}
	return r.err
}

func TestBuild(t *testing.T) {
	out := filepath.Join(t.TempDir(), "app.elf")
	r := &runner{writes: out}
	b := &Builder{Runner: r, Command: []string{"make", "-j4"}, Artifact: out}

	got, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, out, got)
	assert.Equal(t, [][]string{{"make", "-j4"}}, r.calls)
}

func TestBuildFailurePropagates(t *testing.T) {
	r := &runner{err: &tools.ExitError{Name: "make", Code: 2}}
	b := &Builder{Runner: r, Command: []string{"make"}, Artifact: "app.elf"}

	_, err := b.Build(context.Background())
	var ee *tools.ExitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 2, ee.Code)
}

func TestBuildNoArtifact(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		artifact string
	}{
		{"unset", ""},
		{"missing", filepath.Join(dir, "nope.bin")},
		{"directory", dir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Builder{Runner: &runner{}, Artifact: tt.artifact}
			_, err := b.Build(context.Background())
			assert.ErrorIs(t, err, ErrNoArtifact)
		})
	}
}

func TestBuildWithoutCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "prebuilt.bin")
	require.NoError(t, os.WriteFile(out, []byte{0x01}, 0o644))
	r := &runner{}
	got, err := (&Builder{Runner: r, Artifact: out}).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, out, got)
	assert.Empty(t, r.calls)
}
