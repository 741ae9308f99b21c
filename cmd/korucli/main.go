// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/kpipe/device"
	"github.com/devblok/kpipe/spirv"
)

var (
	devices = flag.Bool("devices", false, "Print the Vulkan physical devices as JSON")
	reflect = flag.String("reflect", "", "Print the reflected interface of a compiled shader as JSON")
	debug   = flag.Bool("debug", false, "Enable the validation layers")
)

func main() {
	flag.Parse()

	var err error
	switch {
	case *reflect != "":
		err = reflectShader(*reflect)
	case *devices:
		err = printDevices()
	default:
		flag.PrintDefaults()
		return
	}

	if err != nil {
		log.Fatal(err)
	}
}

func reflectShader(path string) error {
	code, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}

	r, err := spirv.Reflect(code)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return printJSON(r)
}

func printDevices() error {
	cfg := device.InstanceConfiguration{
		DebugMode: *debug,
	}

	instance, err := device.NewInstance(device.DefaultApplicationInfo, nil, cfg)
	if err != nil {
		return err
	}
	defer instance.Destroy()

	return printJSON(instance.PhysicalDevicesInfo())
}

func printJSON(v interface{}) error {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s\n", bytes)
	return nil
}
