// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

// Config is the top-level rtcored configuration file, loaded from TOML by
// main() via toml.DecodeFile.
type Config struct {
	Debug bool
	MQTT  MQTTConfig
	Lidar []LidarConfig
	SixDof []SixDofConfig
	Module []ModuleConfig
}

// MQTTConfig names the broker rtcored publishes telemetry to.
type MQTTConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// LidarConfig configures one RPLidar scanner.
type LidarConfig struct {
	Name   string // MQTT topic prefix for this scanner's measurements
	Port   string // serial device path
	Model  string // "a1" or "a2"
	BaudRate int  `toml:"baud_rate"`
}

// SixDofConfig configures one 6-DOF input device.
type SixDofConfig struct {
	Name   string // MQTT topic prefix for this device's events
	Device string // HID device path
}

// ModuleConfig describes a Module/Channel adapter instance and the GPIO
// pin names it maps to channel indices.
type ModuleConfig struct {
	Name    string // "periph" or "embd"
	Digital map[string]uint16 // pin name -> channel index
	Analog  map[string]uint16 // pin name -> channel index
}
