package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReleaser_RunsEachReleaseOnce(t *testing.T) {
	var r releaser
	calls := map[string]int{}
	r.add(func() { calls["request"]++ })
	r.add(func() { calls["other"]++ })

	r.release()
	r.release()
	assert.Equal(t, map[string]int{"request": 1, "other": 1}, calls)
}

func TestReleaser_Empty(t *testing.T) {
	var r releaser
	assert.NotPanics(t, r.release)
}
