// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unsafe"
)

const shaderSuffix = ".spv"

// ShaderStagesFromDirectory lists the compiled shaders below dir as stages,
// see ShaderStagesFromNames. Filenames are relative to dir.
func ShaderStagesFromDirectory(dir, name string) ([]ShaderStage, error) {
	var files []string
	if err := filepath.Walk(dir, func(file string, f os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if f.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	}); err != nil {
		return nil, err
	}
	return ShaderStagesFromNames(files, name), nil
}

// ShaderStagesFromNames picks the compiled shaders out of a list of file names.
// It is important that the file name does not contain more than two dots,
// the first is always the name of the shader, second is type, and the third one
// ensures that the shader is compiled (only compiled shaders have an .spv extension).
// Only shaders whose name matches the given name are returned, every shader
// when name is empty. Stages come back in pipeline stage order (vertex,
// tessellation, geometry, fragment, compute), then by their order in files.
func ShaderStagesFromNames(files []string, name string) []ShaderStage {
	var stages []ShaderStage
	for _, file := range files {
		base := path.Base(file)
		if !strings.HasSuffix(base, shaderSuffix) {
			continue
		}

		nodes := strings.Split(strings.TrimSuffix(base, shaderSuffix), ".")
		if len(nodes) != 2 {
			continue
		}
		if name != "" && nodes[0] != name {
			continue
		}

		shaderType := ShaderTypeFromSuffix(nodes[1])
		if shaderType == UnknownShaderType {
			continue
		}
		stages = append(stages, ShaderStage{
			Filename: file,
			Type:     shaderType,
		})
	}

	sort.SliceStable(stages, func(i, j int) bool {
		return stages[i].Type.Stage() < stages[j].Type.Stage()
	})
	return stages
}

// SliceUint32 reslices bytes into a uint32, that is used
// to submit vulkan shaders for processing
func SliceUint32(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

func safeString(s string) string {
	return fmt.Sprintf("%s\x00", s)
}
