// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"strings"
)

// PipelineFlags configure the fixed function state of a pipeline
type PipelineFlags uint32

// Pipeline flag bits
const (
	PolygonModeLine PipelineFlags = 1 << iota
	EnableCulling
	CullModeFrontFace
	DepthWriteEnabled
	DepthTestEnabled
	DepthCompareLess
	DepthCompareEqual
	DepthCompareGreater

	// LegacyDepthCompare resolves the depth compare flags single flag first,
	// so Less|Equal yields Less. Old content depends on it.
	LegacyDepthCompare
)

var pipelineFlagNames = []struct {
	flag PipelineFlags
	name string
}{
	{PolygonModeLine, "PolygonModeLine"},
	{EnableCulling, "EnableCulling"},
	{CullModeFrontFace, "CullModeFrontFace"},
	{DepthWriteEnabled, "DepthWriteEnabled"},
	{DepthTestEnabled, "DepthTestEnabled"},
	{DepthCompareLess, "DepthCompareLess"},
	{DepthCompareEqual, "DepthCompareEqual"},
	{DepthCompareGreater, "DepthCompareGreater"},
	{LegacyDepthCompare, "LegacyDepthCompare"},
}

// Has reports whether all bits of mask are set
func (f PipelineFlags) Has(mask PipelineFlags) bool {
	return f&mask == mask
}

func (f PipelineFlags) String() string {
	if f == 0 {
		return "0"
	}
	var names []string
	for _, n := range pipelineFlagNames {
		if f&n.flag != 0 {
			names = append(names, n.name)
			f &^= n.flag
		}
	}
	if f != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(f)))
	}
	return strings.Join(names, "|")
}

// ParsePipelineFlags parses a list of flag names separated by '|' or ','.
func ParsePipelineFlags(s string) (PipelineFlags, error) {
	var flags PipelineFlags
	for _, field := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ','
	}) {
		field = strings.TrimSpace(field)
		if field == "" || field == "0" {
			continue
		}
		var found bool
		for _, n := range pipelineFlagNames {
			if strings.EqualFold(field, n.name) {
				flags |= n.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown pipeline flag %q", field)
		}
	}
	return flags, nil
}
