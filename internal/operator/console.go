// Package operator implements the line-oriented operator console.
package operator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/seandooa/cg4002-capstone-code/internal/command"
	"github.com/seandooa/cg4002-capstone-code/internal/registry"
)

// ErrQuit is returned by Run when the operator asks the relay to exit.
var ErrQuit = errors.New("operator quit")

// Router executes operator commands.
type Router interface {
	Submit(ctx context.Context, cmd command.Command) (command.Result, error)
	List() []registry.Entry
}

// Console reads commands from in and writes replies to out.
type Console struct {
	router Router
	in     io.Reader
	out    io.Writer
	log    *slog.Logger
}

// NewConsole creates a Console.
func NewConsole(router Router, in io.Reader, out io.Writer, log *slog.Logger) *Console {
	return &Console{router: router, in: in, out: out, log: log}
}

const usage = `Commands:
  list                         show connected devices
  select <id|index|all> <ex>   select an exercise (e.g. squats, bicep-curls)
  start <id|index|all>         start a workout
  stop <id|index|all>          stop a workout
  help                         show this help
  quit                         shut the relay down
`

// Run processes lines until quit, end of input or ctx cancellation. It
// returns ErrQuit only for an explicit quit.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			c.log.Warn("console input failed", "error", err)
		}
	}()

	fmt.Fprint(c.out, usage)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				c.log.Info("console input closed")
				return nil
			}
			if err := c.Exec(ctx, line); err != nil {
				return err
			}
		}
	}
}

// Exec runs one console line.
func (c *Console) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	verb, args := strings.ToLower(fields[0]), fields[1:]
	switch verb {
	case "quit", "exit":
		fmt.Fprintln(c.out, "Shutting down.")
		return ErrQuit
	case "help":
		fmt.Fprint(c.out, usage)
	case "list":
		c.printList()
	case "select":
		if len(args) < 2 {
			fmt.Fprintln(c.out, "Usage: select <id|index|all> <exercise>")
			return nil
		}
		c.submit(ctx, command.Select(args[0], strings.Join(args[1:], " ")))
	case "start", "stop":
		if len(args) != 1 {
			fmt.Fprintf(c.out, "Usage: %s <id|index|all>\n", verb)
			return nil
		}
		if verb == "start" {
			c.submit(ctx, command.Start(args[0]))
		} else {
			c.submit(ctx, command.Stop(args[0]))
		}
	default:
		fmt.Fprintf(c.out, "Unknown command %q. Type 'help'.\n", verb)
	}
	return nil
}

func (c *Console) printList() {
	rows := c.router.List()
	if len(rows) == 0 {
		fmt.Fprintln(c.out, "No devices connected")
		return
	}
	fmt.Fprintln(c.out, "Connected devices:")
	for _, r := range rows {
		status := "offline"
		if r.Online {
			status = "online"
		}
		exercise := r.ExerciseType
		if exercise == "" {
			exercise = "-"
		}
		fmt.Fprintf(c.out, "  [%d] %s  %s  %s  workout:%s\n", r.Index, r.DeviceID, exercise, status, r.StateName)
	}
	fmt.Fprintln(c.out, "Use the index number in commands, e.g. 'start 1'.")
}

func (c *Console) submit(ctx context.Context, cmd command.Command) {
	res, err := c.router.Submit(ctx, cmd)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	switch {
	case res.NotFound:
		fmt.Fprintf(c.out, "Device %s not found. Use 'list' to see devices.\n", cmd.Target)
		return
	case res.NoDevices:
		fmt.Fprintln(c.out, "No devices connected")
		return
	}
	for _, d := range res.Devices {
		if !d.Sent {
			fmt.Fprintf(c.out, "[%d] %s: %s failed: %s\n", d.Index, d.DeviceID, cmd.Action, d.Error)
			continue
		}
		switch cmd.Action {
		case command.ActionSelect:
			fmt.Fprintf(c.out, "[%d] %s: exercise set to %s\n", d.Index, d.DeviceID, cmd.Exercise)
		case command.ActionStart:
			fmt.Fprintf(c.out, "[%d] %s: workout started\n", d.Index, d.DeviceID)
		case command.ActionStop:
			fmt.Fprintf(c.out, "[%d] %s: workout stopped (reps %d, duration %ds)\n", d.Index, d.DeviceID, d.Reps, d.Duration)
		}
	}
}
