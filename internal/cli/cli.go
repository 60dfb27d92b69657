// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for luminous.
package cli

import (
	"fmt"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdRepl
	CmdChats
	CmdServe
	CmdConfig
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	Server     string
	Model      string
	Research   bool
	Memory     bool
	Temporary  bool
	JSON       bool
	Quiet      bool
	Verbose    bool

	// Command-specific
	Query      string
	Image      string
	ChatID     string
	Approve    bool
	Subcommand string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `luminous - terminal client for the Luminous chat server

Usage:
  luminous                       Start the TUI (default)
  luminous ask "question"        Ask a single question and print the answer
  luminous repl                  Line-based interactive chat
  luminous chats [subcommand]    List, show, export or delete saved chats
  luminous serve                 Run the local replay server
  luminous config [subcommand]   Show or change configuration
  luminous version               Print version information

Ask:
  luminous ask "question"
    -i, --image PATH             Attach an image (needs a vision model)
    --approve                    Approve a research plan and keep going
  echo "question" | luminous ask Read the question from stdin

Chats:
  luminous chats list            List saved chats (default)
  luminous chats show <id>       Print a chat as markdown
  luminous chats export <id>     Export a chat to a file
    --format md|json|html        Export format (default: md)
    --output DIR                 Directory for the file (default: .)
  luminous chats delete <id>     Delete a chat
  luminous chats clear --confirm Delete every chat

Serve:
  luminous serve
    --addr HOST:PORT             Listen address (default: serve.addr)
    --script FILE                Replay script in TOML (default: built-in demo)
    --db FILE                    Persist chats to sqlite (default: memory)

Config:
  luminous config show           Show the effective configuration
  luminous config get <key>      Print one value (e.g. server.url)
  luminous config set <key> <v>  Change and save one value
  luminous config keys           List every key
  luminous config path           Print the config file path

Global Flags:
  --config FILE                  Use this config file
  --server URL                   Override server.url
  -m, --model ID                 Override model.default
  --research                     Start with deep research on
  --memory                       Start with memory mode on
  --temp                         Start a temporary chat (never saved)
  --chat ID                      Open a saved chat (TUI)
  --json                         JSON output (ask, chats, config)
  -q, --quiet                    Minimal output
  -v, --verbose                  Debug logging

Examples:
  luminous --server http://127.0.0.1:8000
  luminous ask --research --approve "state of RISC-V laptops"
  luminous serve --script demo.toml
  luminous config set model.default qwen3-32b

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("luminous version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments (without the program name) and
// returns the command and args.
func Parse(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, parsedArgs

	case "ask", "a":
		parseAskArgs(&parsedArgs, remaining)
		return CmdAsk, parsedArgs

	case "repl", "chat":
		return CmdRepl, parsedArgs

	case "chats", "ls":
		parseSubcommand(&parsedArgs, remaining)
		return CmdChats, parsedArgs

	case "serve", "server":
		return CmdServe, parsedArgs

	case "config", "cfg":
		parseSubcommand(&parsedArgs, remaining)
		return CmdConfig, parsedArgs

	case "version", "-V", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		// Anything else is a question.
		parsedArgs.Raw = append([]string{cmd}, remaining...)
		parseAskArgs(&parsedArgs, parsedArgs.Raw)
		return CmdAsk, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	// value returns the next argument for flags that take one.
	value := func(i *int) string {
		if *i+1 < len(args) {
			*i++
			return args[*i]
		}
		return ""
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--config":
			parsedArgs.ConfigPath = value(&i)
		case "--server":
			parsedArgs.Server = value(&i)
		case "-m", "--model":
			parsedArgs.Model = value(&i)
		case "--chat":
			parsedArgs.ChatID = value(&i)
		case "--research":
			parsedArgs.Research = true
		case "--memory":
			parsedArgs.Memory = true
		case "--temp", "--temporary":
			parsedArgs.Temporary = true
		case "--json":
			parsedArgs.JSON = true
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		default:
			switch {
			case strings.HasPrefix(arg, "--config="):
				parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
			case strings.HasPrefix(arg, "--server="):
				parsedArgs.Server = strings.TrimPrefix(arg, "--server=")
			case strings.HasPrefix(arg, "--model="):
				parsedArgs.Model = strings.TrimPrefix(arg, "--model=")
			case strings.HasPrefix(arg, "--chat="):
				parsedArgs.ChatID = strings.TrimPrefix(arg, "--chat=")
			default:
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsedArgs
}

// parseAskArgs parses ask command specific arguments.
func parseAskArgs(args *Args, remaining []string) {
	var query []string

	for i := 0; i < len(remaining); i++ {
		arg := remaining[i]

		switch arg {
		case "-i", "--image":
			if i+1 < len(remaining) {
				i++
				args.Image = remaining[i]
			}
		case "--approve":
			args.Approve = true
		case "--":
			query = append(query, remaining[i+1:]...)
			i = len(remaining)
		default:
			if strings.HasPrefix(arg, "--image=") {
				args.Image = strings.TrimPrefix(arg, "--image=")
			} else {
				query = append(query, arg)
			}
		}
	}

	args.Query = strings.Join(query, " ")
}

// parseSubcommand records the first remaining argument.
func parseSubcommand(args *Args, remaining []string) {
	if len(remaining) > 0 {
		args.Subcommand = strings.ToLower(remaining[0])
	}
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

// Run executes cmd and returns the process exit code.
func Run(cmd Command, args Args) int {
	var err error
	switch cmd {
	case CmdTUI:
		err = RunTUI(args)
	case CmdAsk:
		err = HandleAskCommand(args)
	case CmdRepl:
		err = HandleReplCommand(args)
	case CmdChats:
		err = HandleChatsCommand(args)
	case CmdServe:
		err = HandleServeCommand(args)
	case CmdConfig:
		err = HandleConfigCommand(args)
	case CmdVersion:
		HandleVersionWithJSON(args)
	case CmdHelp:
		PrintUsage()
	}
	if err != nil {
		DisplayError(err, args.JSON)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// HandleVersionWithJSON handles the "version" command with JSON output support.
func HandleVersionWithJSON(args Args) {
	if args.JSON {
		data := VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}
		_ = NewJSONResponse("version", data).Print()
		return
	}
	PrintVersion()
}
