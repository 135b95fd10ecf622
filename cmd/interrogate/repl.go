package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ent0n29/uplink/internal/console"
	"github.com/ent0n29/uplink/internal/persona"
	"github.com/ent0n29/uplink/internal/reliability"
)

type repl struct {
	console *console.Console
	in      io.Reader
	out     io.Writer
	timeout time.Duration
	verbose bool
}

func (r *repl) run(ctx context.Context) error {
	subject := r.console.Persona()
	fmt.Fprintf(r.out, "UPLINK ESTABLISHED. Subject: %s (%s)\n", subject.Name, subject.ID)
	r.printState(r.console.Current())

	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/state":
			r.printState(r.console.Current())
			continue
		case "/reset":
			if err := r.console.Reset(); err != nil {
				fmt.Fprintf(r.out, "reset failed: %v\n", err)
				continue
			}
			fmt.Fprintln(r.out, "Transcript cleared.")
			r.printState(r.console.Current())
			continue
		}

		r.exchange(ctx, line)
	}
}

func (r *repl) exchange(ctx context.Context, line string) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res, err := r.console.Send(ctx, line)
	if err != nil {
		if errors.Is(err, console.ErrBusy) {
			fmt.Fprintln(r.out, "Still waiting on the subject.")
			return
		}
		failure := reliability.Classify(err)
		fmt.Fprintln(r.out, failure.Message)
		if r.verbose {
			fmt.Fprintf(r.out, "  [%s] %v\n", failure.Kind, err)
		}
		return
	}

	fmt.Fprintf(r.out, "%s: %s\n", r.console.Persona().Name, res.Reply)
	r.printState(res.State)
}

func (r *repl) printState(s persona.EmotionalState) {
	fmt.Fprintf(r.out, "  stability %3d | aggression %3d | deception %3d\n", s.Stability, s.Aggression, s.Deception)
	if s.IsCritical {
		fmt.Fprintln(r.out, "  !! CRITICAL: subject is breaking down")
	}
}
