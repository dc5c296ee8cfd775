// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

// Package config loads device, plug, protocol, and script definitions
// from a TOML file, matching an EdgeX-style internal/config
// loader.go (github.com/pelletier/go-toml). It is the concrete stand-in
// for section 1's "configuration parsing and protocol-script
// loading" external collaborator: it supplies immutable script.Protocol
// records and registry.Registry-ready device.Device values.
//
// Regexes and Send templates are compiled/validated here, once, at
// load time: each regex handle is compiled once per script element,
// and a Send template with the wrong number of %s slots is rejected
// outright. Any problem is a construction-time error (section 7:
// "configuration errors surface at construction time; not expected
// during operation").
package config

import (
	"io/ioutil"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/powermand/engine/internal/common"
	"github.com/powermand/engine/internal/device"
	"github.com/powermand/engine/internal/plug"
	"github.com/powermand/engine/internal/registry"
	"github.com/powermand/engine/internal/script"
)

// commandNames maps the TOML script-table keys (section 6's command
// enumeration) to common.Command values.
var commandNames = map[string]common.Command{
	"LOG_IN":       common.PmLogIn,
	"LOG_OUT":      common.PmLogOut,
	"UPDATE_PLUGS": common.PmUpdatePlugs,
	"UPDATE_NODES": common.PmUpdateNodes,
	"POWER_ON":     common.PmPowerOn,
	"POWER_OFF":    common.PmPowerOff,
	"POWER_CYCLE":  common.PmPowerCycle,
	"RESET":        common.PmReset,
}

type fileConfig struct {
	Protocols []protocolConfig `toml:"protocols"`
	Devices   []deviceConfig   `toml:"devices"`
}

type elementConfig struct {
	Kind            string         `toml:"kind"`
	Template        string         `toml:"template"`
	Regex           string         `toml:"regex"`
	Duration        string         `toml:"duration"`
	Interpretations []interpConfig `toml:"interpretations"`
}

type interpConfig struct {
	Capture int `toml:"capture"`
	Plug    int `toml:"plug"`
}

type protocolConfig struct {
	Name    string                     `toml:"name"`
	Scripts map[string][]elementConfig `toml:"scripts"`
}

type plugConfig struct {
	Name string `toml:"name"`
	Node string `toml:"node"`
}

type tcpConfig struct {
	Host    string `toml:"host"`
	Service string `toml:"service"`
}

type serialConfig struct {
	Address  string `toml:"address"`
	BaudRate int    `toml:"baud_rate"`
	DataBits int    `toml:"data_bits"`
	StopBits int    `toml:"stop_bits"`
	Parity   string `toml:"parity"`
}

type deviceConfig struct {
	Name              string        `toml:"name"`
	Type              string        `toml:"type"`
	Protocol          string        `toml:"protocol"`
	AllShorthand      string        `toml:"all_shorthand"`
	OnRegex           string        `toml:"on_regex"`
	OffRegex          string        `toml:"off_regex"`
	PerCommandTimeout string        `toml:"per_command_timeout"`
	TCP               *tcpConfig    `toml:"tcp"`
	Serial            *serialConfig `toml:"serial"`
	Plugs             []plugConfig  `toml:"plugs"`
}

// Load reads path, builds every Protocol, and populates a fresh
// Registry with every configured Device bound to notifier/lc. Device
// construction happens here, matching section 3's Lifecycle rule that
// "Device created at config-load".
func Load(path string, notifier device.Notifier, lc common.LoggingClient) (*registry.Registry, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve config path %q", path)
	}

	contents, err := ioutil.ReadFile(absPath)
	if err != nil {
		return nil, errors.Wrapf(err, "read config file %q", absPath)
	}

	var fc fileConfig
	if err := toml.Unmarshal(contents, &fc); err != nil {
		return nil, errors.Wrapf(err, "parse config file %q", absPath)
	}

	protocols := make(map[string]*script.Protocol, len(fc.Protocols))
	for _, pc := range fc.Protocols {
		proto, err := buildProtocol(pc)
		if err != nil {
			return nil, errors.Wrapf(err, "protocol %q", pc.Name)
		}
		protocols[pc.Name] = proto
	}

	reg := registry.New()
	for _, dc := range fc.Devices {
		d, err := buildDevice(dc, protocols, notifier, lc)
		if err != nil {
			return nil, errors.Wrapf(err, "device %q", dc.Name)
		}
		if err := reg.Add(d); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

func buildProtocol(pc protocolConfig) (*script.Protocol, error) {
	if pc.Name == "" {
		return nil, errors.New("protocol name is required")
	}
	scripts := make(map[int]script.Script, len(pc.Scripts))
	for name, elements := range pc.Scripts {
		cmd, ok := commandNames[name]
		if !ok {
			return nil, errors.Errorf("unknown command %q", name)
		}
		s, err := buildScript(cmd, elements)
		if err != nil {
			return nil, errors.Wrapf(err, "script %s", name)
		}
		scripts[int(cmd)] = s
	}
	return &script.Protocol{Name: pc.Name, Scripts: scripts}, nil
}

func buildScript(cmd common.Command, elements []elementConfig) (script.Script, error) {
	out := make(script.Script, 0, len(elements))
	for i, ec := range elements {
		el, err := buildElement(cmd, ec)
		if err != nil {
			return nil, errors.Wrapf(err, "element %d", i)
		}
		out = append(out, el)
	}
	return out, nil
}

func buildElement(cmd common.Command, ec elementConfig) (script.Element, error) {
	switch ec.Kind {
	case "send":
		if err := validateTemplate(cmd, ec.Template); err != nil {
			return script.Element{}, err
		}
		return script.Send(ec.Template), nil

	case "expect":
		re, err := regexp.Compile(ec.Regex)
		if err != nil {
			return script.Element{}, errors.Wrapf(err, "compile regex %q", ec.Regex)
		}
		re.Longest()
		if len(ec.Interpretations) == 0 {
			return script.Expect(re, ec.Regex), nil
		}
		interps := make([]script.Interpretation, 0, len(ec.Interpretations))
		for _, ic := range ec.Interpretations {
			interps = append(interps, script.Interpretation{
				CaptureIndex: ic.Capture,
				PlugIndex:    ic.Plug,
			})
		}
		return script.ExpectWithInterpretation(re, ec.Regex, interps), nil

	case "delay":
		d, err := time.ParseDuration(ec.Duration)
		if err != nil {
			return script.Element{}, errors.Wrapf(err, "parse duration %q", ec.Duration)
		}
		return script.Delay(d), nil

	default:
		return script.Element{}, errors.Errorf("unknown element kind %q", ec.Kind)
	}
}

// validateTemplate enforces the rule: reject templates
// with != 1 "%s" slot when the owning command mandates a target, and
// != 0 slots when it doesn't.
func validateTemplate(cmd common.Command, tmpl string) error {
	slots := strings.Count(tmpl, "%s")
	if cmd.RequiresTarget() {
		if slots != 1 {
			return errors.Errorf("template %q for %s must have exactly one %%s slot, has %d", tmpl, cmd, slots)
		}
		return nil
	}
	if slots != 0 {
		return errors.Errorf("template %q for %s must have no %%s slot, has %d", tmpl, cmd, slots)
	}
	return nil
}

func buildDevice(dc deviceConfig, protocols map[string]*script.Protocol, notifier device.Notifier, lc common.LoggingClient) (*device.Device, error) {
	proto, ok := protocols[dc.Protocol]
	if !ok {
		return nil, errors.Errorf("unknown protocol %q", dc.Protocol)
	}

	var kind device.TransportKind
	switch dc.Type {
	case "tcp", "":
		kind = device.TransportTCP
		if dc.TCP == nil {
			return nil, errors.New("tcp device requires a [devices.tcp] table")
		}
	case "serial":
		kind = device.TransportSerial
		if dc.Serial == nil {
			return nil, errors.New("serial device requires a [devices.serial] table")
		}
	default:
		return nil, errors.Errorf("unknown device type %q", dc.Type)
	}

	onRe, err := regexp.Compile(dc.OnRegex)
	if err != nil {
		return nil, errors.Wrapf(err, "compile on_regex %q", dc.OnRegex)
	}
	offRe, err := regexp.Compile(dc.OffRegex)
	if err != nil {
		return nil, errors.Wrapf(err, "compile off_regex %q", dc.OffRegex)
	}

	timeout, err := time.ParseDuration(dc.PerCommandTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "parse per_command_timeout %q", dc.PerCommandTimeout)
	}

	plugs := make(plug.Table, 0, len(dc.Plugs))
	for _, pc := range dc.Plugs {
		plugs = append(plugs, &plug.Plug{Name: pc.Name, Node: pc.Node})
	}

	d := device.New(dc.Name, kind, proto, plugs, notifier, lc)
	d.AllShorthand = dc.AllShorthand
	d.OnRegexSource = dc.OnRegex
	d.OffRegexSource = dc.OffRegex
	d.OnRegex = onRe
	d.OffRegex = offRe
	d.PerCommandTimeout = timeout

	if kind == device.TransportTCP {
		d.TCP = device.Endpoint{Host: dc.TCP.Host, Service: dc.TCP.Service}
	} else {
		d.Serial = device.SerialEndpoint{
			Address:  dc.Serial.Address,
			BaudRate: dc.Serial.BaudRate,
			DataBits: dc.Serial.DataBits,
			StopBits: dc.Serial.StopBits,
			Parity:   dc.Serial.Parity,
		}
	}

	return d, nil
}
