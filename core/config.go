// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Environment keys read by LoadConfiguration
const (
	EnvFramesPerSecond = "KORU_FPS"
	EnvScreenWidth     = "KORU_SCREEN_WIDTH"
	EnvScreenHeight    = "KORU_SCREEN_HEIGHT"
	EnvSwapchainSize   = "KORU_SWAPCHAIN_SIZE"
	EnvDebugMode       = "KORU_VK_DEBUG"
	EnvShaderDirectory = "KORU_SHADER_DIR"
	EnvShaderName      = "KORU_SHADER_NAME"
	EnvShaderArchive   = "KORU_SHADER_ARCHIVE"
	EnvPipelineFlags   = "KORU_PIPELINE_FLAGS"
	EnvLogLevel        = "KORU_LOG_LEVEL"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Renderer RendererConfiguration
	Pipeline PipelineConfiguration
	LogLevel log.Level
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	SwapchainSize    uint32
	DeviceExtensions []string
	DebugMode        bool

	ScreenWidth  uint32
	ScreenHeight uint32
}

// PipelineConfiguration selects the shaders and state of the demo pipeline
type PipelineConfiguration struct {
	// ShaderDirectory is searched for name.type.spv files
	ShaderDirectory string
	// ShaderName picks the shader set inside the directory
	ShaderName string
	// ShaderArchive is an optional kar archive tried before the directory
	ShaderArchive string
	Flags         PipelineFlags
}

// DefaultConfiguration is used for every key missing from the environment
var DefaultConfiguration = Configuration{
	Time: TimeConfiguration{
		FramesPerSecond: 60,
	},
	Renderer: RendererConfiguration{
		SwapchainSize:    3,
		DeviceExtensions: []string{"VK_KHR_swapchain"},
		ScreenWidth:      800,
		ScreenHeight:     600,
	},
	Pipeline: PipelineConfiguration{
		ShaderDirectory: "./shaders",
		ShaderName:      "triangle",
		Flags:           EnableCulling | DepthTestEnabled | DepthWriteEnabled | DepthCompareLess,
	},
	LogLevel: log.InfoLevel,
}

// LoadConfiguration reads the configuration from the environment.
// The given .env files are loaded first, they never override variables
// that are already set. Missing files are skipped.
func LoadConfiguration(files ...string) (Configuration, error) {
	for _, file := range files {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return Configuration{}, fmt.Errorf("godotenv.Load(%s): %w", file, err)
		}
	}
	envy.Reload()

	cfg := DefaultConfiguration
	cfg.Renderer.DeviceExtensions = append([]string(nil), DefaultConfiguration.Renderer.DeviceExtensions...)

	var err error
	if cfg.Time.FramesPerSecond, err = envInt(EnvFramesPerSecond, cfg.Time.FramesPerSecond); err != nil {
		return Configuration{}, err
	}
	if cfg.Renderer.ScreenWidth, err = envUint32(EnvScreenWidth, cfg.Renderer.ScreenWidth); err != nil {
		return Configuration{}, err
	}
	if cfg.Renderer.ScreenHeight, err = envUint32(EnvScreenHeight, cfg.Renderer.ScreenHeight); err != nil {
		return Configuration{}, err
	}
	if cfg.Renderer.SwapchainSize, err = envUint32(EnvSwapchainSize, cfg.Renderer.SwapchainSize); err != nil {
		return Configuration{}, err
	}
	if cfg.Renderer.DebugMode, err = strconv.ParseBool(envy.Get(EnvDebugMode, "false")); err != nil {
		return Configuration{}, fmt.Errorf("%s: %w", EnvDebugMode, err)
	}

	cfg.Pipeline.ShaderDirectory = envy.Get(EnvShaderDirectory, cfg.Pipeline.ShaderDirectory)
	cfg.Pipeline.ShaderName = envy.Get(EnvShaderName, cfg.Pipeline.ShaderName)
	cfg.Pipeline.ShaderArchive = envy.Get(EnvShaderArchive, cfg.Pipeline.ShaderArchive)
	if flags := envy.Get(EnvPipelineFlags, ""); flags != "" {
		if cfg.Pipeline.Flags, err = ParsePipelineFlags(flags); err != nil {
			return Configuration{}, fmt.Errorf("%s: %w", EnvPipelineFlags, err)
		}
	}

	if level := envy.Get(EnvLogLevel, ""); level != "" {
		if cfg.LogLevel, err = log.ParseLevel(level); err != nil {
			return Configuration{}, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
	}

	return cfg, nil
}

func envInt(key string, fallback int) (int, error) {
	value, err := strconv.Atoi(envy.Get(key, strconv.Itoa(fallback)))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return value, nil
}

func envUint32(key string, fallback uint32) (uint32, error) {
	value, err := strconv.ParseUint(envy.Get(key, strconv.FormatUint(uint64(fallback), 10)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return uint32(value), nil
}
