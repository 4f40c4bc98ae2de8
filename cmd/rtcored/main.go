// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

// Command rtcored is an example application embedding the rtcore runtime:
// it loads a TOML configuration file, connects to an MQTT broker, wires up
// any configured LIDAR scanners, 6-DOF input devices and Module adapters,
// and publishes their decoded events as telemetry.
//
// EtherCAT servo wiring (drivers/smcservo) needs a real ethercat.Transport,
// which this daemon intentionally does not implement; an application with
// a real EtherCAT NIC transport can call smcservo.New directly the same
// way this file calls rplidar.New and sixdof.New.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/tve/rtcore/drivers/rplidar"
	"github.com/tve/rtcore/drivers/rplidara2"
	"github.com/tve/rtcore/embdmodule"
	"github.com/tve/rtcore/periphmodule"
	"github.com/tve/rtcore/serial"
	"github.com/tve/rtcore/sixdof"
)

func main() {
	configFile := flag.String("config", "rtcored.toml", "path to config file")
	flag.Parse()

	log := logrus.New()

	config := &Config{}
	if _, err := toml.DecodeFile(*configFile, config); err != nil {
		fmt.Fprintf(os.Stderr, "cannot parse config file: %s\n", err)
		os.Exit(1)
	}
	if config.Debug {
		log.SetLevel(logrus.DebugLevel)
	}

	broker, err := newMQ(config.MQTT, log)
	if err != nil {
		log.WithError(err).Fatal("connect to MQTT broker")
	}
	defer broker.Close()

	var closers []func() error

	for _, lc := range config.Lidar {
		closeFn, err := startLidar(lc, broker, log)
		if err != nil {
			log.WithError(err).WithField("lidar", lc.Name).Fatal("start lidar")
		}
		closers = append(closers, closeFn)
	}

	for _, sc := range config.SixDof {
		closeFn, err := startSixDof(sc, broker, log)
		if err != nil {
			log.WithError(err).WithField("device", sc.Name).Fatal("start 6-DOF device")
		}
		closers = append(closers, closeFn)
	}

	for _, mc := range config.Module {
		if err := startModule(mc, log); err != nil {
			log.WithError(err).WithField("module", mc.Name).Fatal("start module")
		}
	}

	log.Info("rtcored ready")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.WithError(err).Warn("error during shutdown")
		}
	}
}

// startLidar opens the configured serial port and the matching RPLidar
// driver (A1 or A2), publishing decoded measurements to
// "rtcore/lidar/<name>/scan".
func startLidar(lc LidarConfig, broker *mq, log *logrus.Logger) (func() error, error) {
	baud := lc.BaudRate
	if baud == 0 {
		baud = 115200
	}
	port, err := serial.Open(serial.Config{Name: lc.Port, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", lc.Port, err)
	}

	topic := fmt.Sprintf("rtcore/lidar/%s/scan", lc.Name)
	logPrintf := func(format string, v ...interface{}) {
		log.WithField("lidar", lc.Name).Debugf(format, v...)
	}
	delegate := func(quality, angle, distance float64) {
		broker.Publish(topic, map[string]float64{
			"quality": quality, "angle": angle, "distance": distance,
		})
	}

	switch lc.Model {
	case "a2":
		d, err := rplidara2.New(port, rplidara2.DelegateFunc(delegate), logPrintf)
		if err != nil {
			return nil, err
		}
		d.StartScan()
		return d.Close, nil
	default:
		d, err := rplidar.New(port, rplidar.DelegateFunc(delegate), logPrintf)
		if err != nil {
			return nil, err
		}
		d.StartScan()
		return d.Close, nil
	}
}

// startSixDof opens the configured HID device path and publishes decoded
// axis/button events to "rtcore/sixdof/<name>/{translation,rotation,buttons}".
func startSixDof(sc SixDofConfig, broker *mq, log *logrus.Logger) (func() error, error) {
	f, err := os.OpenFile(sc.Device, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open HID device %s: %w", sc.Device, err)
	}

	logPrintf := func(format string, v ...interface{}) {
		log.WithField("sixdof", sc.Name).Debugf(format, v...)
	}
	d, err := sixdof.New(f, sixdofDelegate{name: sc.Name, broker: broker}, logPrintf)
	if err != nil {
		return nil, err
	}
	return d.Close, nil
}

type sixdofDelegate struct {
	name   string
	broker *mq
}

func (d sixdofDelegate) ReceiveTranslation(x, y, z int16) {
	d.broker.Publish(fmt.Sprintf("rtcore/sixdof/%s/translation", d.name),
		map[string]int16{"x": x, "y": y, "z": z})
}

func (d sixdofDelegate) ReceiveRotation(rx, ry, rz int16) {
	d.broker.Publish(fmt.Sprintf("rtcore/sixdof/%s/rotation", d.name),
		map[string]int16{"rx": rx, "ry": ry, "rz": rz})
}

func (d sixdofDelegate) ReceiveButtons(mask uint32) {
	d.broker.Publish(fmt.Sprintf("rtcore/sixdof/%s/buttons", d.name),
		map[string]uint32{"mask": mask})
}

// startModule constructs a Module adapter of the configured backend. The
// resulting Module has no identity or lifecycle of its own -- per
// module.Module's contract, it is up to further application code (not
// shown here) to build Channel values against it.
func startModule(mc ModuleConfig, log *logrus.Logger) error {
	logPrintf := func(format string, v ...interface{}) {
		log.WithField("module", mc.Name).Debugf(format, v...)
	}
	switch mc.Name {
	case "embd":
		digital := invert(mc.Digital)
		analog := invert(mc.Analog)
		embdmodule.New(digital, analog, logPrintf)
		return nil
	case "periph":
		digital := invert(mc.Digital)
		if _, err := periphmodule.New(digital, nil, logPrintf); err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unknown module backend %q", mc.Name)
	}
}

func invert(m map[string]uint16) map[uint16]string {
	out := make(map[uint16]string, len(m))
	for name, idx := range m {
		out[idx] = name
	}
	return out
}
