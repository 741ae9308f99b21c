// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"encoding/binary"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/kpipe/core"
)

func TestSliceUint32(t *testing.T) {
	c := qt.New(t)

	data := make([]byte, 10)
	binary.LittleEndian.PutUint32(data[0:], 0x07230203)
	binary.LittleEndian.PutUint32(data[4:], 0x00010000)

	words := core.SliceUint32(data)
	c.Assert(words, qt.HasLen, 2)
	c.Assert(words[0], qt.Equals, uint32(0x07230203))
	c.Assert(words[1], qt.Equals, uint32(0x00010000))

	c.Assert(core.SliceUint32([]byte{1, 2}), qt.IsNil)
}

func BenchmarkSliceUint32Small(b *testing.B) {
	data := make([]byte, 100)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkSliceUint32Medium(b *testing.B) {
	data := make([]byte, 1000)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkSliceUint32Big(b *testing.B) {
	data := make([]byte, 100000)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func TestShaderStagesFromDirectory(t *testing.T) {
	c := qt.New(t)

	dir := c.TempDir()
	c.Assert(os.MkdirAll(filepath.Join(dir, "nested"), 0755), qt.IsNil)
	for _, name := range []string{
		"triangle.frag.spv",
		"triangle.vert.spv",
		"triangle.vert.glsl",
		"triangle.spv",
		"triangle.mesh.spv",
		"quad.vert.spv",
		"nested/triangle.geom.spv",
	} {
		c.Assert(ioutil.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), []byte{0}, 0644), qt.IsNil)
	}

	stages, err := core.ShaderStagesFromDirectory(dir, "triangle")
	c.Assert(err, qt.IsNil)
	c.Assert(stages, qt.DeepEquals, []core.ShaderStage{
		{Filename: "triangle.vert.spv", Type: core.VertexShaderType},
		{Filename: "nested/triangle.geom.spv", Type: core.GeometryShaderType},
		{Filename: "triangle.frag.spv", Type: core.FragmentShaderType},
	})

	stages, err = core.ShaderStagesFromDirectory(dir, "")
	c.Assert(err, qt.IsNil)
	c.Assert(stages, qt.HasLen, 4)

	_, err = core.ShaderStagesFromDirectory(filepath.Join(dir, "missing"), "")
	c.Assert(err, qt.IsNotNil)
}

func TestShaderStagesFromNames(t *testing.T) {
	c := qt.New(t)

	stages := core.ShaderStagesFromNames([]string{
		"shaders/sky.frag.spv",
		"shaders/sky.comp",
		"sky.vert.spv",
		"ground.vert.spv",
	}, "sky")
	c.Assert(stages, qt.DeepEquals, []core.ShaderStage{
		{Filename: "sky.vert.spv", Type: core.VertexShaderType},
		{Filename: "shaders/sky.frag.spv", Type: core.FragmentShaderType},
	})
	c.Assert(core.ShaderStagesFromNames(nil, ""), qt.HasLen, 0)
}

func TestShaderStagesFromNamesPipelineOrder(t *testing.T) {
	c := qt.New(t)

	stages := core.ShaderStagesFromNames([]string{
		"terrain.comp.spv",
		"terrain.frag.spv",
		"terrain.geom.spv",
		"terrain.tese.spv",
		"terrain.tesc.spv",
		"terrain.vert.spv",
	}, "terrain")
	c.Assert(stages, qt.DeepEquals, []core.ShaderStage{
		{Filename: "terrain.vert.spv", Type: core.VertexShaderType},
		{Filename: "terrain.tesc.spv", Type: core.TessellationControlShaderType},
		{Filename: "terrain.tese.spv", Type: core.TessellationEvaluationShaderType},
		{Filename: "terrain.geom.spv", Type: core.GeometryShaderType},
		{Filename: "terrain.frag.spv", Type: core.FragmentShaderType},
		{Filename: "terrain.comp.spv", Type: core.ComputeShaderType},
	})
}
