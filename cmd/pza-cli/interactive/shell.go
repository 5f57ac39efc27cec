// Package interactive provides the interactive command-line interface
// of pza-cli.
package interactive

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/panduza/panduza-go/pkg/attribute"
	"github.com/panduza/panduza-go/pkg/reactor"
	"github.com/panduza/panduza-go/pkg/wire"
)

// DefaultWaitTimeout bounds the status wait command.
const DefaultWaitTimeout = 10 * time.Second

// Shell runs text commands against a connected reactor.
type Shell struct {
	r   *reactor.Reactor
	rl  *readline.Instance
	out io.Writer

	mu            sync.Mutex
	watches       map[string]*attr
	notifications *attribute.Notification
}

// New creates a shell writing its output to out (stdout when nil).
func New(r *reactor.Reactor, out io.Writer) *Shell {
	if out == nil {
		out = os.Stdout
	}
	return &Shell{
		r:       r,
		out:     out,
		watches: make(map[string]*attr),
	}
}

// Stdout returns a writer that coordinates with the readline prompt once
// Run has started.
func (s *Shell) Stdout() io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

// Run starts the interactive command loop. It returns when the user quits,
// input ends, or ctx is done.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pza> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    s.completer(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	s.mu.Lock()
	s.rl = rl
	s.out = rl.Stdout()
	s.mu.Unlock()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.Stdout(), "Exiting...")
			cancel()
			return nil
		}

		if s.Exec(ctx, line) {
			cancel()
			return nil
		}
	}
}

func (s *Shell) completer() readline.AutoCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("status", readline.PcItem("wait")),
		readline.PcItem("notifications"),
		readline.PcItem("quit"),
	}
	for _, cmd := range []string{"list", "info", "get", "set", "shoot", "watch", "unwatch"} {
		items = append(items, readline.PcItem(cmd, readline.PcItemDynamic(func(string) []string {
			return s.r.Structure().Keys()
		})))
	}
	return readline.NewPrefixCompleter(items...)
}

// Exec runs one command line. It returns true when the shell should exit.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		s.printHelp()
	case "list", "ls":
		s.cmdList(args)
	case "info":
		err = s.cmdInfo(args)
	case "get", "g":
		err = s.cmdGet(ctx, args)
	case "set", "s":
		err = s.cmdWrite(ctx, args, true)
	case "shoot":
		err = s.cmdWrite(ctx, args, false)
	case "watch", "w":
		err = s.cmdWatch(ctx, args)
	case "unwatch":
		err = s.cmdUnwatch(args)
	case "status", "st":
		err = s.cmdStatus(ctx, args)
	case "notifications", "notif":
		err = s.cmdNotifications(ctx)
	case "quit", "exit", "q":
		return true
	default:
		err = fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
	if err != nil {
		fmt.Fprintf(s.Stdout(), "Error: %v\n", err)
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Fprint(s.Stdout(), `
Commands:
  list [pattern]            List attributes (shell pattern, default all)
  info <attr>               Show attribute metadata
  get <attr>                Print the last value of an attribute
  set <attr> <value>        Write and wait for the confirmation
  shoot <attr> <value>      Write without waiting
  watch <attr>              Print every new value
  unwatch <attr>            Stop watching
  status [wait]             Show instance status, or wait for all running
  notifications             Toggle printing of platform notifications
  quit                      Exit

Values: booleans as true/false or on/off, numbers as decimals,
bytes as hex. Strings take the rest of the line.
`)
}

func (s *Shell) cmdList(args []string) {
	st := s.r.Structure()
	if len(args) == 0 {
		for _, k := range st.Keys() {
			meta, _ := st.Find(k)
			fmt.Fprintf(s.Stdout(), "  %-48s %-8s %s\n", k, meta.Type, meta.Mode)
		}
		return
	}
	for _, meta := range st.FindAll(args[0]) {
		fmt.Fprintf(s.Stdout(), "  %-48s %-8s %s\n", meta.Topic, meta.Type, meta.Mode)
	}
}

func (s *Shell) cmdInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: info <attr>")
	}
	meta, ok := s.r.Structure().Find(args[0])
	if !ok {
		return fmt.Errorf("no attribute matches %q", args[0])
	}
	out := s.Stdout()
	fmt.Fprintf(out, "Topic: %s\n", meta.Topic)
	fmt.Fprintf(out, "Type:  %s\n", meta.Type)
	fmt.Fprintf(out, "Mode:  %s\n", meta.Mode)
	if meta.Info != "" {
		fmt.Fprintf(out, "Info:  %s\n", meta.Info)
	}
	return nil
}

func (s *Shell) cmdGet(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: get <attr>")
	}
	a, err := openAttr(ctx, s.r, args[0])
	if err != nil {
		return err
	}
	defer a.close()

	v, ok := a.get()
	if !ok {
		fmt.Fprintf(s.Stdout(), "%s = <no value>\n", a.meta.Topic)
		return nil
	}
	fmt.Fprintf(s.Stdout(), "%s = %s\n", a.meta.Topic, v)
	return nil
}

func (s *Shell) cmdWrite(ctx context.Context, args []string, confirm bool) error {
	if len(args) < 2 {
		if confirm {
			return fmt.Errorf("usage: set <attr> <value>")
		}
		return fmt.Errorf("usage: shoot <attr> <value>")
	}
	a, err := openAttr(ctx, s.r, args[0])
	if err != nil {
		return err
	}
	defer a.close()

	raw := strings.Join(args[1:], " ")
	if !confirm {
		if err := a.shoot(ctx, raw); err != nil {
			return err
		}
		fmt.Fprintf(s.Stdout(), "%s <- %s (sent)\n", a.meta.Topic, raw)
		return nil
	}
	if err := a.set(ctx, raw); err != nil {
		return err
	}
	fmt.Fprintf(s.Stdout(), "%s <- %s (confirmed)\n", a.meta.Topic, raw)
	return nil
}

func (s *Shell) cmdWatch(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: watch <attr>")
	}
	a, err := openAttr(ctx, s.r, args[0])
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.watches[a.meta.Topic]; exists {
		s.mu.Unlock()
		a.close()
		return fmt.Errorf("already watching %s", a.meta.Topic)
	}
	s.watches[a.meta.Topic] = a
	s.mu.Unlock()

	topic := a.meta.Topic
	a.watch(func(v string) {
		fmt.Fprintf(s.Stdout(), "[watch] %s = %s\n", topic, v)
	})
	fmt.Fprintf(s.Stdout(), "Watching %s\n", topic)
	return nil
}

func (s *Shell) cmdUnwatch(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: unwatch <attr>")
	}
	meta, ok := s.r.Structure().Find(args[0])
	if !ok {
		return fmt.Errorf("no attribute matches %q", args[0])
	}

	s.mu.Lock()
	a, ok := s.watches[meta.Topic]
	delete(s.watches, meta.Topic)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("not watching %s", meta.Topic)
	}
	fmt.Fprintf(s.Stdout(), "Stopped watching %s\n", meta.Topic)
	return a.close()
}

func (s *Shell) cmdStatus(ctx context.Context, args []string) error {
	st, err := s.r.NewStatusAttribute(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if len(args) > 0 && args[0] == "wait" {
		if err := st.WaitForAllInstancesToBeRunning(ctx, DefaultWaitTimeout); err != nil {
			return err
		}
		fmt.Fprintln(s.Stdout(), "All instances running")
	}

	instances := st.Instances()
	if len(instances) == 0 {
		fmt.Fprintln(s.Stdout(), "No instance reported")
		return nil
	}
	for _, line := range formatInstances(instances) {
		fmt.Fprintf(s.Stdout(), "  %s\n", line)
	}
	return nil
}

func (s *Shell) cmdNotifications(ctx context.Context) error {
	s.mu.Lock()
	current := s.notifications
	s.notifications = nil
	s.mu.Unlock()

	if current != nil {
		fmt.Fprintln(s.Stdout(), "Notifications off")
		return current.Close()
	}

	n, err := s.r.NewNotificationAttribute(ctx)
	if err != nil {
		return err
	}
	n.AddCallback(func(_ context.Context, p wire.NotificationPayload) error {
		fmt.Fprintf(s.Stdout(), "[notification] %s\n", formatNotification(p))
		return nil
	}, nil)

	s.mu.Lock()
	s.notifications = n
	s.mu.Unlock()
	fmt.Fprintln(s.Stdout(), "Notifications on")
	return nil
}

// Close releases every handle the shell still holds.
func (s *Shell) Close() error {
	s.mu.Lock()
	watches := s.watches
	s.watches = make(map[string]*attr)
	n := s.notifications
	s.notifications = nil
	s.mu.Unlock()

	for _, a := range watches {
		a.close()
	}
	if n != nil {
		n.Close()
	}
	return nil
}
