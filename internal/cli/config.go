// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation.
//
// Command: config [subcommand]
// Short:   View and modify configuration
// Aliases: cfg
//
// Subcommands:
//   show (default)      Display the effective configuration
//   get <key>           Print one value
//   set <key> <value>   Change one value and save the file
//   keys                List every key
//   reset --confirm     Write the default configuration
//   path                Show the configuration file path
//
// Examples:
//   luminous config set server.url http://127.0.0.1:8000
//   luminous config set model.default qwen3-32b
//   luminous config set model.vision_models qwen2.5-vl,llava
//   luminous config set research.deep_research true
//   luminous config get sampling.temperature
//   luminous config show --json
//
// show reports the config after .env files, environment variables and
// command line flags are applied. set edits only what the file holds.

package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"reflect"
	"strings"

	"github.com/jeranaias/luminous-tui/internal/config"
	"github.com/jeranaias/luminous-tui/internal/util"
)

const configUsage = "luminous config [show|get <key>|set <key> <value>|keys|reset --confirm|path]"

// HandleConfigCommand handles the "config" command.
func HandleConfigCommand(args Args) error {
	return runConfig(args, os.Stdout)
}

func runConfig(args Args, out io.Writer) error {
	p := NewArgParser(args.Raw)
	path, err := configFile(args)
	if err != nil {
		return err
	}

	switch p.Subcommand() {
	case "", "show":
		cfg, _, err := loadConfig(args)
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("config show", map[string]any{"path": path, "config": cfg}).Write(out)
		}
		showConfig(cfg, path, out)
		return nil

	case "get":
		key := p.Positional(1)
		if key == "" {
			return ErrMissingArgument("key", configUsage)
		}
		cfg, _, err := loadConfig(args)
		if err != nil {
			return err
		}
		value, err := cfg.Get(key)
		if err != nil {
			return &UsageError{Message: err.Error(), Usage: "luminous config keys"}
		}
		if args.JSON {
			return NewJSONResponse("config get", map[string]any{"key": key, "value": value}).Write(out)
		}
		fmt.Fprintln(out, formatValue(value))
		return nil

	case "set":
		key, value := p.Positional(1), strings.Join(p.PositionalFrom(2), " ")
		if key == "" {
			return ErrMissingArgument("key", configUsage)
		}
		return setConfig(path, key, value, args, out)

	case "keys":
		keys := config.Keys()
		if args.JSON {
			return NewJSONResponse("config keys", keys).Write(out)
		}
		for _, k := range keys {
			fmt.Fprintln(out, k)
		}
		return nil

	case "reset":
		if !p.BoolFlag("confirm") {
			return &UsageError{Message: "reset overwrites " + path + "; pass --confirm", Usage: "luminous config reset --confirm"}
		}
		if err := config.SaveTOML(config.Default(), path); err != nil {
			return &ConfigError{Err: err}
		}
		fmt.Fprintf(out, "%s Configuration reset to defaults\n", SuccessStyle.Render("[OK]"))
		return nil

	case "path":
		_, statErr := os.Stat(path)
		exists := statErr == nil
		if args.JSON {
			return NewJSONResponse("config path", map[string]any{"path": path, "exists": exists}).Write(out)
		}
		fmt.Fprintln(out, path)
		if !exists {
			StderrPrintf("%s file does not exist, defaults are used\n", DimStyle.Render("Note:"))
		}
		return nil

	default:
		return ErrUnknownSubcommand("config", p.Subcommand(), configUsage)
	}
}

// configFile returns the file named by --config or the default path.
func configFile(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	path, err := config.ConfigPath()
	if err != nil {
		return "", &ConfigError{Err: err}
	}
	return path, nil
}

// setConfig changes key in the file at path. Environment overrides are
// not applied so they never end up in the file.
func setConfig(path, key, value string, args Args, out io.Writer) error {
	cfg := config.Default()
	if err := config.LoadTOML(cfg, path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &ConfigError{Err: err}
	}
	cfg.SetDefaults()

	if err := cfg.Set(key, value); err != nil {
		return &UsageError{Message: err.Error(), Usage: "luminous config set <key> <value>"}
	}
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return &ConfigError{Err: err}
	}

	saved, _ := cfg.Get(key)
	if args.JSON {
		return NewJSONResponse("config set", map[string]any{"key": key, "value": saved, "path": path}).Write(out)
	}
	fmt.Fprintf(out, "%s %s = %s\n", SuccessStyle.Render("[OK]"), key, formatValue(saved))
	return nil
}

// showConfig prints every key grouped by section.
func showConfig(cfg *config.Config, path string, out io.Writer) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render("luminous configuration"))
	fmt.Fprintln(out, RenderSeparator(41))

	section := ""
	for _, key := range config.Keys() {
		sec, name, _ := strings.Cut(key, ".")
		if sec != section {
			section = sec
			fmt.Fprintln(out)
			fmt.Fprintln(out, TitleStyle.Render("["+sec+"]"))
		}
		value, err := cfg.Get(key)
		if err != nil {
			continue
		}
		text := formatValue(value)
		if name == "system_prompt" {
			text = util.TruncateRunes(text, 60)
		}
		fmt.Fprintf(out, "  %s%s\n", RenderLabel(name+":"), ValueStyle.Render(text))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, RenderSeparator(41))
	fmt.Fprintf(out, "Config file: %s\n", DimStyle.Render(path))
}

// formatValue prints lists comma separated and empty strings as (not set).
func formatValue(v any) string {
	rv := reflect.ValueOf(v)
	switch {
	case !rv.IsValid():
		return "(not set)"
	case rv.Kind() == reflect.Slice:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = fmt.Sprint(rv.Index(i).Interface())
		}
		if len(parts) == 0 {
			return "(not set)"
		}
		return strings.Join(parts, ",")
	case rv.Kind() == reflect.String && rv.String() == "":
		return "(not set)"
	}
	return fmt.Sprint(v)
}
