// Package cli parses the voxdrop command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

// Command names one voxdrop subcommand.
type Command string

const (
	CommandToggle  Command = "toggle"
	CommandUpload  Command = "upload"
	CommandExtract Command = "extract"
	CommandStatus  Command = "status"
	CommandQuit    Command = "quit"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

type commandInfo struct {
	name    Command
	usage   string
	summary string
}

// commands is ordered as shown in help. Only extract takes an operand.
var commands = []commandInfo{
	{CommandToggle, "toggle", "Start recording, or stop and keep the clip when already recording"},
	{CommandUpload, "upload", "Upload the most recent clip to the backend"},
	{CommandExtract, "extract URL", "Ask the backend to extract audio from a YouTube URL"},
	{CommandExtract, "extract", "Resubmit the URL kept after a failed extraction"},
	{CommandStatus, "status", "Print current state"},
	{CommandQuit, "quit", "Stop the running voxdrop owner"},
	{CommandDevices, "devices", "List available input devices"},
	{CommandDoctor, "doctor", "Run configuration and environment checks"},
	{CommandVersion, "version", "Print version information"},
	{CommandHelp, "help", "Show this help"},
}

func lookup(name string) (Command, bool) {
	for _, c := range commands {
		if string(c.name) == name {
			return c.name, true
		}
	}
	return "", false
}

// Parsed is the result of Parse. With no command it asks for help.
type Parsed struct {
	Command Command
	// URL is set for extract; HasURL false means resubmit the held target.
	URL        string
	HasURL     bool
	ConfigPath string
	ShowHelp   bool
}

// Parse reads global flags up to the first command word. Everything after the
// command is its operands.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for len(args) > 0 {
		arg := args[0]
		args = args[1:]

		switch {
		case arg == "-h" || arg == "--help":
			parsed.Command, parsed.ShowHelp = CommandHelp, true
		case arg == "--version":
			parsed.Command, parsed.ShowHelp = CommandVersion, false
		case arg == "--config":
			if len(args) == 0 {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath, args = args[0], args[1:]
		case strings.HasPrefix(arg, "-"):
			return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
		default:
			cmd, ok := lookup(arg)
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command, parsed.ShowHelp = cmd, cmd == CommandHelp
			if err := parsed.operands(args); err != nil {
				return Parsed{}, err
			}
			return parsed, nil
		}
	}
	return parsed, nil
}

func (p *Parsed) operands(rest []string) error {
	switch {
	case p.Command == CommandExtract && len(rest) > 1:
		return errors.New("extract takes at most one URL argument")
	case p.Command == CommandExtract && len(rest) == 1:
		p.URL, p.HasURL = rest[0], true
	case p.Command != CommandExtract && len(rest) > 0:
		return fmt.Errorf("unexpected arguments after command %q", p.Command)
	}
	return nil
}

// HelpText renders usage for binaryName.
func HelpText(binaryName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage:\n  %s [--config PATH] <command>\n\nCommands:\n", binaryName)
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-13s %s\n", c.usage, c.summary)
	}
	b.WriteString(`
Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/voxdrop/config.jsonc)
  -h, --help      Show help
  --version       Show version

Environment:
  VOXDROP_API_URL     Override api.base_url (also read from .env)
  VOXDROP_ENV_FILE    Alternate dotenv file
  VOXDROP_LOG_LEVEL   debug, info, warn, or error
`)
	return b.String()
}
