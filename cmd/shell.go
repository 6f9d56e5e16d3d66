package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	appreg "github.com/zjrosen/hotswap/internal/application/registry"
	"github.com/zjrosen/hotswap/internal/config"
	"github.com/zjrosen/hotswap/internal/domain/registry"
	"github.com/zjrosen/hotswap/internal/flags"
	"github.com/zjrosen/hotswap/internal/infrastructure/loader"
	"github.com/zjrosen/hotswap/internal/log"
	"github.com/zjrosen/hotswap/internal/presentation"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive registry session",
	Long: `Start a line-oriented session against an in-process registry. Configured
entries are registered first. Errors are printed and the session continues.

Commands:
  register <name> <path>        register a module file
  reload <name>                 reload from the backing file
  reload-file <name> <path>     rebind to another file and reload
  patch <name> <file>           install <file>'s module into <name> and archive its text
  rollback <name> [steps]       roll back (default 1 step)
  forward <name>                undo the last in-memory rollback
  list                          registered names
  history <name> [--json]       version log and undo/redo depth
  diff <name> [steps]           patch from an earlier version to the current one
  call <name> [args...]         call a function entry
  invoke <name> <method> [args...]
  get <name> <field>
  set <name> <field> <value>
  new <name> [args...]          construct an instance of a class entry
  remove <name>
  help
  quit`,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := newRuntime(cfg, config.DepthSource(v))
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.Background()) }()

	out := cmd.OutOrStdout()
	if err := rt.registerEntries(ctx, cfg.Entries); err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
	}
	sh := newShell(rt.svc, rt.loader, rt.flags, out)
	return sh.run(ctx, cmd.InOrStdin())
}

// shell executes one command line at a time against a service.
type shell struct {
	svc    *appreg.Service
	loader loader.Loader
	flags  *flags.Registry
	out    io.Writer
}

func newShell(svc *appreg.Service, l loader.Loader, f *flags.Registry, out io.Writer) *shell {
	return &shell{svc: svc, loader: l, flags: f, out: out}
}

func (s *shell) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	s.prompt()
	for scanner.Scan() {
		if quit := s.exec(ctx, scanner.Text()); quit {
			return nil
		}
		s.prompt()
	}
	return scanner.Err()
}

func (s *shell) prompt() {
	fmt.Fprint(s.out, "hotswap> ")
}

// exec runs line and reports whether the session should end.
func (s *shell) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name, args := fields[0], fields[1:]
	if name == "quit" || name == "exit" {
		return true
	}

	handler, ok := shellCommands[name]
	if !ok {
		fmt.Fprintf(s.out, "error: unknown command %q (try help)\n", name)
		return false
	}
	if len(args) < handler.minArgs {
		fmt.Fprintf(s.out, "usage: %s\n", handler.usage)
		return false
	}
	if err := handler.run(s, ctx, args); err != nil {
		log.Debug(log.CatCLI, "shell command failed", "command", name, "error", err)
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
	return false
}

type shellCommand struct {
	usage   string
	minArgs int
	run     func(s *shell, ctx context.Context, args []string) error
}

var shellCommands map[string]shellCommand

func init() {
	shellCommands = map[string]shellCommand{
		"register":    {"register <name> <path>", 2, (*shell).register},
		"reload":      {"reload <name>", 1, (*shell).reload},
		"reload-file": {"reload-file <name> <path>", 2, (*shell).reloadFile},
		"patch":       {"patch <name> <file>", 2, (*shell).patch},
		"rollback":    {"rollback <name> [steps]", 1, (*shell).rollback},
		"forward":     {"forward <name>", 1, (*shell).forward},
		"list":        {"list", 0, (*shell).list},
		"history":     {"history <name> [--json]", 1, (*shell).history},
		"diff":        {"diff <name> [steps]", 1, (*shell).diff},
		"call":        {"call <name> [args...]", 1, (*shell).call},
		"invoke":      {"invoke <name> <method> [args...]", 2, (*shell).invoke},
		"get":         {"get <name> <field>", 2, (*shell).get},
		"set":         {"set <name> <field> <value>", 3, (*shell).set},
		"new":         {"new <name> [args...]", 1, (*shell).construct},
		"remove":      {"remove <name>", 1, (*shell).remove},
		"help":        {"help", 0, (*shell).help},
	}
}

func (s *shell) register(ctx context.Context, args []string) error {
	h, err := s.svc.RegisterFromFile(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "registered %s (%s)\n", h.Name(), h.Kind())
	return nil
}

func (s *shell) reload(ctx context.Context, args []string) error {
	if err := s.svc.Reload(ctx, args[0]); err != nil {
		return err
	}
	s.reloaded(ctx, args[0])
	return nil
}

func (s *shell) reloadFile(ctx context.Context, args []string) error {
	if err := s.svc.ReloadFromFile(ctx, args[0], args[1]); err != nil {
		return err
	}
	s.reloaded(ctx, args[0])
	return nil
}

// patch installs a module loaded from another file. Its text replaces the
// entry's backing file and is archived, so the file and the registry agree.
func (s *shell) patch(ctx context.Context, args []string) error {
	snap, err := s.svc.History(args[0])
	if err != nil {
		return err
	}
	if snap.SourcePath != "" && loader.Format(args[1]) != loader.Format(snap.SourcePath) {
		return fmt.Errorf("%s is %s, %s is %s: %w", args[1], loader.Format(args[1]),
			snap.SourcePath, loader.Format(snap.SourcePath), registry.ErrFormatMismatch)
	}
	unit, err := s.loader.Load(ctx, args[1])
	if err != nil {
		return err
	}
	if err := s.svc.ReloadInstance(ctx, args[0], unit.Impl, appreg.WithSource(unit.Source)); err != nil {
		return err
	}
	s.reloaded(ctx, args[0])
	return nil
}

func (s *shell) reloaded(ctx context.Context, name string) {
	fmt.Fprintf(s.out, "reloaded %s\n", name)
	if !s.flags.Enabled(flags.FlagReloadDiff) {
		return
	}
	patch, err := s.svc.Diff(ctx, name, 1)
	if err != nil {
		return
	}
	fmt.Fprint(s.out, presentation.RenderDiff(patch))
}

func (s *shell) rollback(ctx context.Context, args []string) error {
	steps, err := optionalSteps(args)
	if err != nil {
		return err
	}
	if err := s.svc.Rollback(ctx, args[0], steps); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "rolled back %s by %d\n", args[0], steps)
	return nil
}

func (s *shell) forward(ctx context.Context, args []string) error {
	if err := s.svc.RollForward(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "rolled %s forward\n", args[0])
	return nil
}

func (s *shell) list(context.Context, []string) error {
	names := s.svc.List()
	if len(names) == 0 {
		fmt.Fprintln(s.out, "(no entries)")
		return nil
	}
	for _, name := range names {
		snap, err := s.svc.History(name)
		if err != nil {
			continue // removed concurrently
		}
		fmt.Fprintf(s.out, "%s\t%s\t%s\n", name, snap.Kind, snap.SourcePath)
	}
	return nil
}

func (s *shell) history(_ context.Context, args []string) error {
	snap, err := s.svc.History(args[0])
	if err != nil {
		return err
	}
	dto := presentation.FromSnapshot(snap)
	f := presentation.NewFormatter(s.out)
	if len(args) > 1 && args[1] == "--json" {
		return f.FormatHistory(dto)
	}
	return f.RenderHistory(dto)
}

func (s *shell) diff(ctx context.Context, args []string) error {
	steps, err := optionalSteps(args)
	if err != nil {
		return err
	}
	patch, err := s.svc.Diff(ctx, args[0], steps)
	if err != nil {
		return err
	}
	if patch == "" {
		fmt.Fprintln(s.out, "(no changes)")
		return nil
	}
	fmt.Fprint(s.out, presentation.RenderDiff(patch))
	return nil
}

func (s *shell) call(_ context.Context, args []string) error {
	h, err := s.svc.Get(args[0])
	if err != nil {
		return err
	}
	result, err := h.Call(parseArgs(args[1:])...)
	if err != nil {
		return err
	}
	s.print(result)
	return nil
}

func (s *shell) invoke(_ context.Context, args []string) error {
	h, err := s.svc.Get(args[0])
	if err != nil {
		return err
	}
	result, err := h.Invoke(args[1], parseArgs(args[2:])...)
	if err != nil {
		return err
	}
	s.print(result)
	return nil
}

func (s *shell) get(_ context.Context, args []string) error {
	h, err := s.svc.Get(args[0])
	if err != nil {
		return err
	}
	value, err := h.Get(args[1])
	if err != nil {
		return err
	}
	s.print(value)
	return nil
}

func (s *shell) set(_ context.Context, args []string) error {
	h, err := s.svc.Get(args[0])
	if err != nil {
		return err
	}
	return h.Set(args[1], parseArg(strings.Join(args[2:], " ")))
}

func (s *shell) construct(_ context.Context, args []string) error {
	h, err := s.svc.Get(args[0])
	if err != nil {
		return err
	}
	obj, err := h.New(parseArgs(args[1:])...)
	if err != nil {
		return err
	}
	fields := obj.Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	fmt.Fprintf(s.out, "%s{%s}\n", h.Name(), strings.Join(parts, " "))
	return nil
}

func (s *shell) remove(ctx context.Context, args []string) error {
	if err := s.svc.Remove(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "removed %s\n", args[0])
	return nil
}

func (s *shell) help(context.Context, []string) error {
	names := make([]string, 0, len(shellCommands))
	for name := range shellCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(s.out, "  %s\n", shellCommands[name].usage)
	}
	fmt.Fprintln(s.out, "  quit")
	return nil
}

func (s *shell) print(v any) {
	if v == nil {
		fmt.Fprintln(s.out, "nil")
		return
	}
	fmt.Fprintf(s.out, "%v\n", v)
}

func optionalSteps(args []string) (int, error) {
	if len(args) < 2 {
		return 1, nil
	}
	steps, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, errors.New("steps must be a number")
	}
	return steps, nil
}

func parseArgs(raw []string) []any {
	out := make([]any, len(raw))
	for i, r := range raw {
		out[i] = parseArg(r)
	}
	return out
}

// parseArg turns a shell word into an int, float, bool, or string. Integers
// are always decimal: a leading zero does not mean octal.
func parseArg(raw string) any {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if raw == "true" || raw == "false" {
		return cast.ToBool(raw)
	}
	return strings.Trim(raw, `"`)
}
