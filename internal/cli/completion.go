package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/samber/lo"
)

// CompletionCmd generates shell completions
type CompletionCmd struct {
	Shell string `arg:"" enum:"bash,zsh,fish" help:"Shell type (bash, zsh, fish)"`
}

type completionNode struct {
	Subcommands []string
	Flags       []string
}

// completionIndex maps a command path ("config show" as "config__show")
// to what can follow it.
type completionIndex map[string]completionNode

// Run executes the completion command. It takes *kong.Context so the
// output follows the real CLI model.
func (c *CompletionCmd) Run(globals *Globals, ctx *kong.Context) error {
	var model *kong.Node
	if ctx != nil && ctx.Model != nil {
		model = ctx.Model.Node
	}
	idx := buildCompletionIndex(model)

	var script string
	switch c.Shell {
	case "bash":
		script = bashCompletion(idx)
	case "zsh":
		script = "autoload -U +X bashcompinit && bashcompinit\n" + bashCompletion(idx)
	case "fish":
		script = fishCompletion(idx)
	default:
		return fmt.Errorf("unsupported shell: %s", c.Shell)
	}
	_, err := fmt.Fprint(globals.Stdout, script)
	return err
}

func buildCompletionIndex(model *kong.Node) completionIndex {
	idx := completionIndex{}
	if model == nil {
		idx[""] = completionNode{}
		return idx
	}

	var walk func(n *kong.Node, path []string)
	walk = func(n *kong.Node, path []string) {
		children := lo.Filter(n.Children, func(child *kong.Node, _ int) bool {
			return child != nil && child.Type == kong.CommandNode && !child.Hidden
		})
		sub := lo.Map(children, func(child *kong.Node, _ int) string { return child.Name })
		sort.Strings(sub)

		var flags []string
		for _, group := range n.AllFlags(true) {
			for _, f := range group {
				flags = append(flags, "--"+f.Name)
				if f.Short != 0 {
					flags = append(flags, "-"+string(f.Short))
				}
			}
		}
		flags = lo.Uniq(flags)
		sort.Strings(flags)

		idx[strings.Join(path, "__")] = completionNode{Subcommands: sub, Flags: flags}
		for _, child := range children {
			walk(child, append(append([]string{}, path...), child.Name))
		}
	}
	walk(model, nil)
	return idx
}

func (idx completionIndex) paths() []string {
	keys := lo.Keys(idx)
	sort.Strings(keys)
	return keys
}

func bashCompletion(idx completionIndex) string {
	var sb strings.Builder
	sb.WriteString(`# tabreload bash completion script
# Add to ~/.bashrc:
#   eval "$(tabreload completion bash)"

_tabreload_completions() {
    local cur path word i
    cur="${COMP_WORDS[COMP_CWORD]}"
    path=""
    for ((i = 1; i < COMP_CWORD; i++)); do
        word="${COMP_WORDS[i]}"
        [[ "$word" == -* ]] && continue
        [[ "$word" == "--" ]] && return 0
        if [[ -z "$path" ]]; then
            path="$word"
        else
            path="${path}__${word}"
        fi
    done

    local words=""
    case "$path" in
`)
	for _, key := range idx.paths() {
		node := idx[key]
		label := key
		if label == "" {
			label = `""`
		}
		fmt.Fprintf(&sb, "        %s)\n            words=%q\n            ;;\n", label,
			strings.Join(append(append([]string{}, node.Subcommands...), node.Flags...), " "))
	}
	sb.WriteString(`    esac
    COMPREPLY=($(compgen -W "${words}" -- "${cur}"))
}

complete -F _tabreload_completions tabreload
`)
	return sb.String()
}

func fishCompletion(idx completionIndex) string {
	var sb strings.Builder
	sb.WriteString("# tabreload fish completion script\n# Save to ~/.config/fish/completions/tabreload.fish\n\n")
	sb.WriteString("complete -c tabreload -f\n")
	for _, key := range idx.paths() {
		node := idx[key]
		cond := "__fish_use_subcommand"
		if key != "" {
			parts := strings.Split(key, "__")
			cond = "__fish_seen_subcommand_from " + parts[len(parts)-1]
		}
		for _, sub := range node.Subcommands {
			fmt.Fprintf(&sb, "complete -c tabreload -n '%s' -a %s\n", cond, sub)
		}
		for _, flag := range node.Flags {
			if strings.HasPrefix(flag, "--") {
				fmt.Fprintf(&sb, "complete -c tabreload -n '%s' -l %s\n", cond, strings.TrimPrefix(flag, "--"))
			}
		}
	}
	return sb.String()
}
