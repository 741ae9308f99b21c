// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package device owns the Vulkan instance and the logical device that
// pipelines are built against.
package device

import (
	"strings"

	vk "github.com/devblok/vulkan"
)

// DefaultApplicationInfo application info describes a Vulkan application
var DefaultApplicationInfo = &vk.ApplicationInfo{
	SType:              vk.StructureTypeApplicationInfo,
	ApiVersion:         vk.MakeVersion(1, 0, 0),
	ApplicationVersion: vk.MakeVersion(1, 0, 0),
	PApplicationName:   "Koru3D\x00",
	PEngineName:        "Koru3D\x00",
}

// InstanceConfiguration is used to create an instance
type InstanceConfiguration struct {
	DebugMode  bool
	Extensions []string
	Layers     []string
}

// PhysicalDeviceInfo describes available physical properties of a rendering device
type PhysicalDeviceInfo struct {
	ID            int      `json:"id"`
	VendorID      int      `json:"vendorId"`
	DriverVersion int      `json:"driverVersion"`
	Name          string   `json:"name"`
	Invalid       bool     `json:"invalid"`
	Extensions    []string `json:"extensions"`
	Layers        []string `json:"layers"`
	Memory        uint64   `json:"memory"`
}

// safeStrings null terminates every string for the C side
func safeStrings(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	safe := make([]string, len(list))
	for idx, s := range list {
		if strings.HasSuffix(s, "\x00") {
			safe[idx] = s
			continue
		}
		safe[idx] = s + "\x00"
	}
	return safe
}

// graphicsQueueFamily picks the first family supporting graphics, preferring
// one that can also present when present support is known.
func graphicsQueueFamily(families []vk.QueueFlags, present func(uint32) bool) (uint32, bool) {
	fallback, found := uint32(0), false
	for idx, flags := range families {
		if flags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			continue
		}
		if present == nil || present(uint32(idx)) {
			return uint32(idx), true
		}
		if !found {
			fallback, found = uint32(idx), true
		}
	}
	return fallback, found
}

// colorFormat picks the color format of the render pass from the formats
// the surface supports. An undefined only entry leaves the choice to us.
func colorFormat(formats []vk.Format) vk.Format {
	if len(formats) == 0 || (len(formats) == 1 && formats[0] == vk.FormatUndefined) {
		return vk.FormatB8g8r8a8Unorm
	}
	for _, format := range formats {
		if format == vk.FormatB8g8r8a8Unorm {
			return format
		}
	}
	return formats[0]
}
