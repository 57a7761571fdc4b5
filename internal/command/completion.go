package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/joeycumines/playfeel/internal/signal"
)

// CompletionCommand generates shell completion scripts.
type CompletionCommand struct {
	*BaseCommand
	registry *Registry
}

// NewCompletionCommand creates a new completion command.
func NewCompletionCommand(registry *Registry) *CompletionCommand {
	return &CompletionCommand{
		BaseCommand: NewBaseCommand(
			"completion",
			"Generate shell completion scripts",
			"completion [bash|zsh|fish]",
		),
		registry: registry,
	}
}

// Execute generates the completion script for the specified shell.
func (c *CompletionCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 1 {
		_, _ = fmt.Fprintf(stderr, "Too many arguments: %v\n", args[1:])
		return fmt.Errorf("too many arguments")
	}
	shell := "bash"
	if len(args) > 0 {
		shell = strings.ToLower(args[0])
	}
	switch shell {
	case "bash":
		return c.generateBash(stdout)
	case "zsh":
		return c.generateZsh(stdout)
	case "fish":
		return c.generateFish(stdout)
	default:
		_, _ = fmt.Fprintf(stderr, "Unsupported shell: %s\n", shell)
		_, _ = fmt.Fprintln(stderr, "Supported shells: bash, zsh, fish")
		return fmt.Errorf("unsupported shell: %s", shell)
	}
}

// commandFlags returns the flag names a command registers, sorted.
func commandFlags(cmd Command) []string {
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.SetupFlags(fs)
	var names []string
	fs.VisitAll(func(f *flag.Flag) { names = append(names, "--"+f.Name) })
	sort.Strings(names)
	return names
}

// flagValues lists the fixed values of the flags that have them.
func flagValues() map[string][]string {
	return map[string][]string{
		"--scenario":  append(append([]string(nil), signal.Scenarios...), "all"),
		"--driver":    {DriverChrome, DriverGoja},
		"--headless":  {"true", "false"},
		"--log-level": {"debug", "info", "warn", "error"},
		"--format":    {"auto", "table", "plain"},
	}
}

func (c *CompletionCommand) generateBash(w io.Writer) error {
	var b strings.Builder
	b.WriteString(`# Bash completion script for playfeel
# Install with: source <(playfeel completion bash)

_playfeel_completion() {
    local cur prev cmd
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"
    cmd="${COMP_WORDS[1]}"

    if [[ ${COMP_CWORD} -eq 1 && ${cur} != -* ]]; then
`)
	fmt.Fprintf(&b, "        COMPREPLY=($(compgen -W %q -- \"${cur}\"))\n        return 0\n    fi\n\n", strings.Join(c.registry.List(), " "))

	b.WriteString("    case \"${prev}\" in\n")
	values := flagValues()
	for _, f := range sortedKeys(values) {
		fmt.Fprintf(&b, "        %s)\n            COMPREPLY=($(compgen -W %q -- \"${cur}\"))\n            return 0\n            ;;\n", f, strings.Join(values[f], " "))
	}
	b.WriteString("        completion)\n            COMPREPLY=($(compgen -W \"bash zsh fish\" -- \"${cur}\"))\n            return 0\n            ;;\n    esac\n\n")

	b.WriteString("    if [[ ${cur} == -* ]]; then\n        case \"${cmd}\" in\n")
	var defFlags []string
	for _, name := range c.registry.List() {
		cmd, _ := c.registry.Get(name)
		flags := commandFlags(cmd)
		if len(flags) == 0 {
			continue
		}
		fmt.Fprintf(&b, "            %s)\n                COMPREPLY=($(compgen -W %q -- \"${cur}\"))\n                ;;\n", name, strings.Join(flags, " "))
	}
	if def, ok := c.registry.Default(); ok {
		defFlags = commandFlags(def)
	}
	fmt.Fprintf(&b, "            *)\n                COMPREPLY=($(compgen -W %q -- \"${cur}\"))\n                ;;\n        esac\n        return 0\n    fi\n\n", strings.Join(defFlags, " "))

	b.WriteString("    COMPREPLY=($(compgen -f -- \"${cur}\"))\n}\n\ncomplete -F _playfeel_completion playfeel\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func (c *CompletionCommand) generateZsh(w io.Writer) error {
	var b strings.Builder
	b.WriteString("#compdef playfeel\n\n# Zsh completion script for playfeel\n# Install with: source <(playfeel completion zsh)\n\n_playfeel() {\n    local -a commands\n    commands=(\n")
	for _, name := range c.registry.List() {
		cmd, _ := c.registry.Get(name)
		fmt.Fprintf(&b, "        '%s:%s'\n", name, zshEscape(cmd.Description()))
	}
	b.WriteString("    )\n\n    if (( CURRENT == 2 )) && [[ ${words[2]} != -* ]]; then\n        _describe 'command' commands\n        return\n    fi\n\n    case ${words[2]} in\n")
	values := flagValues()
	for _, name := range c.registry.List() {
		cmd, _ := c.registry.Get(name)
		flags := commandFlags(cmd)
		if len(flags) == 0 {
			continue
		}
		fmt.Fprintf(&b, "        %s)\n            _arguments", name)
		for _, f := range flags {
			if v, ok := values[f]; ok {
				fmt.Fprintf(&b, " \\\n                '%s=[%s]:value:(%s)'", f, strings.TrimPrefix(f, "--"), strings.Join(v, " "))
			} else {
				fmt.Fprintf(&b, " \\\n                '%s=[%s]:value:_files'", f, strings.TrimPrefix(f, "--"))
			}
		}
		b.WriteString("\n            ;;\n")
	}
	b.WriteString("        completion)\n            _values 'shell' bash zsh fish\n            ;;\n        *)\n            _files\n            ;;\n    esac\n}\n\n_playfeel \"$@\"\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func (c *CompletionCommand) generateFish(w io.Writer) error {
	var b strings.Builder
	b.WriteString("# Fish completion script for playfeel\n# Install with: playfeel completion fish > ~/.config/fish/completions/playfeel.fish\n\n")
	for _, name := range c.registry.List() {
		cmd, _ := c.registry.Get(name)
		fmt.Fprintf(&b, "complete -c playfeel -n '__fish_use_subcommand' -a '%s' -d '%s'\n", name, fishEscape(cmd.Description()))
	}
	values := flagValues()
	for _, name := range c.registry.List() {
		cmd, _ := c.registry.Get(name)
		for _, f := range commandFlags(cmd) {
			long := strings.TrimPrefix(f, "--")
			if v, ok := values[f]; ok {
				fmt.Fprintf(&b, "complete -c playfeel -n '__fish_seen_subcommand_from %s' -l %s -x -a '%s'\n", name, long, strings.Join(v, " "))
			} else {
				fmt.Fprintf(&b, "complete -c playfeel -n '__fish_seen_subcommand_from %s' -l %s -r\n", name, long)
			}
		}
	}
	b.WriteString("complete -c playfeel -n '__fish_seen_subcommand_from completion' -a 'bash zsh fish' -d 'Shell'\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func zshEscape(s string) string {
	return strings.NewReplacer("'", "'\\''", ":", "\\:").Replace(s)
}

func fishEscape(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
