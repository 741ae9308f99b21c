// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"io/ioutil"
	"path/filepath"

	"github.com/gobuffalo/packd"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/kpipe/utility/kar"
)

// ShaderSource loads compiled shader bytes by identifier.
// An empty result means the shader could not be loaded.
type ShaderSource interface {
	Load(id string) []byte
}

// ShaderSourceFunc adapts a function to a ShaderSource
type ShaderSourceFunc func(id string) []byte

// Load implements interface
func (f ShaderSourceFunc) Load(id string) []byte {
	return f(id)
}

// DirectorySource loads shaders from files below a directory.
type DirectorySource struct {
	Dir string
}

// Load implements interface
func (d DirectorySource) Load(id string) []byte {
	path := filepath.Join(d.Dir, filepath.FromSlash(id))
	data, err := ioutil.ReadFile(path)
	if err != nil {
		log.WithFields(log.Fields{
			"path":  path,
			"error": err,
		}).Error("shader file could not be read")
		return nil
	}
	return data
}

// BoxSource loads shaders from anything that finds files by name,
// a packr box being the usual one.
type BoxSource struct {
	Box packd.Finder
}

// Load implements interface
func (b BoxSource) Load(id string) []byte {
	data, err := b.Box.Find(id)
	if err != nil {
		log.WithFields(log.Fields{
			"shader": id,
			"error":  err,
		}).Error("shader not found in box")
		return nil
	}
	return data
}

// ArchiveSource loads shaders from a kar archive.
type ArchiveSource struct {
	Archive *kar.Archive
}

// Load implements interface
func (a ArchiveSource) Load(id string) []byte {
	data, err := a.Archive.ReadAll(id)
	if err != nil {
		log.WithFields(log.Fields{
			"shader": id,
			"error":  err,
		}).Error("shader could not be read from archive")
		return nil
	}
	return data
}

// FallbackSource tries every source in order until one returns bytes.
type FallbackSource []ShaderSource

// Load implements interface
func (f FallbackSource) Load(id string) []byte {
	for _, source := range f {
		if data := source.Load(id); len(data) > 0 {
			return data
		}
	}
	return nil
}
