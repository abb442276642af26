package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"k8s.io/klog/v2"
)

// UCI drives a Handler over the Universal Chess Interface protocol.
type UCI struct {
	h   *Handler
	out io.Writer
}

// NewUCI wraps h for chess play over stdin/stdout-shaped readers/writers.
func NewUCI(h *Handler, out io.Writer) *UCI {
	return &UCI{h: h, out: out}
}

// Run reads commands from in until EOF or "quit", writing protocol
// responses to the UCI's configured out. Internal diagnostics go through
// klog; the only diagnostics also written to out are "info string" lines
// for a rejected position or setoption, so a GUI parsing stdout never sees
// anything but well-formed UCI lines.
func (u *UCI) Run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			fmt.Fprintln(u.out, "readyok")
		case "ucinewgame":
			u.h.NewGame()
		case "position":
			if err := u.h.SetPosition(args); err != nil {
				klog.Warningf("uci: %v", err)
				fmt.Fprintf(u.out, "info string error %v\n", err)
			}
		case "go":
			u.handleGo(args)
		case "stop":
			u.h.Stop()
		case "setoption":
			u.handleSetOption(args)
		case "bench":
			u.h.Bench(u.out, 0)
		case "quit":
			return
		default:
			klog.V(1).Infof("uci: unrecognized command %q", cmd)
		}
	}
}

func (u *UCI) handleUCI() {
	fmt.Fprintf(u.out, "id name %s\n", u.h.Name)
	fmt.Fprintf(u.out, "id author %s\n", u.h.Author)
	for _, line := range optionLines() {
		fmt.Fprintln(u.out, line)
	}
	fmt.Fprintln(u.out, "uciok")
}

func (u *UCI) handleGo(args []string) {
	limits := parseGoLimits(args)
	u.h.Go(limits,
		func(v InfoView) { fmt.Fprintln(u.out, formatInfoLine(v)) },
		func(v InfoView) { fmt.Fprintf(u.out, "bestmove %s\n", v.BestMove) },
	)
}

func (u *UCI) handleSetOption(args []string) {
	name, value, ok := parseSetOption(args)
	if !ok {
		return
	}
	if err := u.h.SetOption(name, value); err != nil {
		fmt.Fprintf(u.out, "info string warning %v, keeping previous value\n", err)
	}
}
