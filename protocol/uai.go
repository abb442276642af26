package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"k8s.io/klog/v2"
)

// UAI drives a Handler over the Ataxx community's UCI-derived protocol:
// identical command grammar ("position"/"go"/"stop"/"setoption"/"quit"),
// swapping only the handshake keyword ("uai"/"uaiok" for "uci"/"uciok")
// and "uainewgame" for "ucinewgame". corvid-ataxx speaks this instead of
// inventing its own wire format so existing Ataxx GUIs (built against the
// same UCI-derived convention other engines in the space use) work
// unmodified.
type UAI struct {
	h   *Handler
	out io.Writer
}

// NewUAI wraps h for Ataxx play over stdin/stdout-shaped readers/writers.
func NewUAI(h *Handler, out io.Writer) *UAI {
	return &UAI{h: h, out: out}
}

// Run reads commands from in until EOF or "quit".
func (u *UAI) Run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "uai":
			u.handleUAI()
		case "isready":
			fmt.Fprintln(u.out, "readyok")
		case "uainewgame":
			u.h.NewGame()
		case "position":
			if err := u.h.SetPosition(args); err != nil {
				klog.Warningf("uai: %v", err)
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
			klog.V(1).Infof("uai: unrecognized command %q", cmd)
		}
	}
}

func (u *UAI) handleUAI() {
	fmt.Fprintf(u.out, "id name %s\n", u.h.Name)
	fmt.Fprintf(u.out, "id author %s\n", u.h.Author)
	for _, line := range optionLines() {
		fmt.Fprintln(u.out, line)
	}
	fmt.Fprintln(u.out, "uaiok")
}

func (u *UAI) handleGo(args []string) {
	limits := parseGoLimits(args)
	u.h.Go(limits,
		func(v InfoView) { fmt.Fprintln(u.out, formatInfoLine(v)) },
		func(v InfoView) { fmt.Fprintf(u.out, "bestmove %s\n", v.BestMove) },
	)
}

func (u *UAI) handleSetOption(args []string) {
	name, value, ok := parseSetOption(args)
	if !ok {
		return
	}
	if err := u.h.SetOption(name, value); err != nil {
		fmt.Fprintf(u.out, "info string warning %v, keeping previous value\n", err)
	}
}
