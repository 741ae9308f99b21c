// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestExtractPath(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()

	for _, name := range []string{
		"triangle.vert.spv",
		"nested/triangle.frag.spv",
		"..hidden/sky.vert.spv",
		"..sky.frag.spv",
		"nested/../triangle.geom.spv",
	} {
		dst, err := extractPath(dir, name)
		c.Assert(err, qt.IsNil, qt.Commentf("%s", name))
		c.Assert(dst, qt.Equals, filepath.Join(dir, filepath.FromSlash(name)))
	}

	for _, name := range []string{
		"..",
		"../escape.spv",
		"nested/../../escape.spv",
	} {
		_, err := extractPath(dir, name)
		c.Assert(err, qt.ErrorMatches, ".*refusing to extract outside of.*", qt.Commentf("%s", name))
	}
}
