// ems-client runs a jobs file against an ems-server.
//
//	ems-client <registration-pipe> <request-pipe> <response-pipe> <jobs-file>
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/andy6609/ems-pipe-server/internal/protocol"
	"github.com/andy6609/ems-pipe-server/pkg/client"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("ems-client", pflag.ContinueOnError)
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ems-client <registration-pipe> <request-pipe> <response-pipe> <jobs-file>\n")
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	args := flagSet.Args()
	if len(args) != 4 {
		flagSet.Usage()
		return fmt.Errorf("expected 4 arguments, got %d", len(args))
	}

	f, err := os.Open(args[3])
	if err != nil {
		return err
	}
	jobs, err := parseJobs(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", args[3], err)
	}

	c, err := client.Setup(args[0], args[1], args[2])
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer c.Quit()

	return runJobs(c, jobs, os.Stdout)
}

// runner is the part of client.Client that runJobs drives.
type runner interface {
	Create(eventID, rows, cols uint) error
	Reserve(eventID uint, seats []protocol.Seat) error
	Show(eventID uint) (string, error)
	List() (string, error)
	Wait(seconds uint) error
}

// runJobs executes jobs in order. Failed commands are reported and skipped;
// transport errors end the run.
func runJobs(c runner, jobs []job, out io.Writer) error {
	for _, j := range jobs {
		var text string
		var err error
		switch j.cmd.Op {
		case protocol.OpCreate:
			err = c.Create(j.cmd.EventID, j.cmd.Rows, j.cmd.Cols)
		case protocol.OpReserve:
			err = c.Reserve(j.cmd.EventID, j.cmd.Seats)
		case protocol.OpShow:
			text, err = c.Show(j.cmd.EventID)
		case protocol.OpList:
			text, err = c.List()
		case protocol.OpWait:
			err = c.Wait(j.cmd.Seconds)
		}

		switch {
		case errors.Is(err, client.ErrFailed):
			fmt.Fprintf(out, "line %d: %s failed\n", j.line, j.cmd.Op)
		case err != nil:
			return fmt.Errorf("line %d: %w", j.line, err)
		default:
			fmt.Fprint(out, text)
		}
	}
	return nil
}
