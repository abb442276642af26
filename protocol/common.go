// Package protocol implements the two text wire protocols corvid speaks:
// UCI for chess (uci.go) and UAI for Ataxx (uai.go), both thin framings
// around the same Handler core since the two protocols differ only in a
// handful of command/response keywords (spec §4.8's "one Game capability,
// many concrete games" claim extends to the protocol layer too). Grounded
// on hailam-chessplay's internal/uci package's command-loop shape.
package protocol

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"

	"github.com/corvidchess/corvid/game"
	"github.com/corvidchess/corvid/mcts"
)

// Game is the capability a concrete position needs beyond game.Game to be
// driven from a text protocol: rendering and parsing moves in the
// protocol's own long-algebraic notation.
type Game interface {
	game.Game
	MoveString(m game.Move) string
	ParseMove(s string) (game.Move, bool)
}

// Factory builds fresh positions for a Handler's "newgame"/"position"
// commands, so Handler itself never imports game/chess or game/ataxx.
type Factory struct {
	New     func() Game
	FromFEN func(fen string) (Game, error)
}

// GoLimits is the parsed form of a "go"/search command's time and depth
// arguments, independent of which protocol produced it.
type GoLimits struct {
	Infinite  bool
	Nodes     uint64
	MoveTime  time.Duration
	WTime     time.Duration
	BTime     time.Duration
	WInc      time.Duration
	BInc      time.Duration
	MovesToGo int
}

// Handler is the protocol-independent engine state machine: it owns the
// current position, the search tree, and the single in-flight search, and
// is driven by uci.go/uai.go's command loops.
type Handler struct {
	Name    string
	Author  string
	Workers int

	factory  Factory
	searcher *mcts.Searcher
	pos      Game

	mu         sync.Mutex
	searching  atomic.Bool
	stopSignal chan struct{}
	doneSignal chan struct{}
}

// NewHandler builds a Handler around an already-loaded searcher.
func NewHandler(name, author string, workers int, factory Factory, searcher *mcts.Searcher) *Handler {
	return &Handler{
		Name:     name,
		Author:   author,
		Workers:  workers,
		factory:  factory,
		searcher: searcher,
		pos:      factory.New(),
	}
}

// NewGame resets the engine for a new game: fresh starting position,
// discarded search tree.
func (h *Handler) NewGame() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pos = h.factory.New()
	h.searcher.NewGame()
}

// SetPosition implements "position [startpos|fen <fen>] [moves ...]",
// shared verbatim between UCI and UAI since both use the same grammar.
func (h *Handler) SetPosition(args []string) error {
	if len(args) == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var moveStart int
	switch args[0] {
	case "startpos":
		h.pos = h.factory.New()
		moveStart = indexOf(args, "moves") + 1
	case "fen":
		end := len(args)
		if i := indexOf(args, "moves"); i >= 0 {
			end = i
		}
		fen := strings.Join(args[1:end], " ")
		p, err := h.factory.FromFEN(fen)
		if err != nil {
			return fmt.Errorf("protocol: invalid fen: %w", err)
		}
		h.pos = p
		moveStart = end + 1
	default:
		return fmt.Errorf("protocol: unrecognized position command %q", args[0])
	}

	if moveStart <= 0 || moveStart >= len(args) {
		return nil
	}
	for _, ms := range args[moveStart:] {
		m, ok := h.pos.ParseMove(ms)
		if !ok {
			return fmt.Errorf("protocol: illegal move %q", ms)
		}
		h.pos.Make(m)
	}
	return nil
}

// indexOf returns the index of needle in haystack, or -1.
func indexOf(haystack []string, needle string) int {
	for i, s := range haystack {
		if s == needle {
			return i
		}
	}
	return -1
}

// parseGoLimits parses a "go"/"search" argument list shared by both
// protocols (both borrow UCI's keyword set: wtime/btime/winc/binc/movetime/
// movestogo/nodes/infinite).
func parseGoLimits(args []string) GoLimits {
	var l GoLimits
	for i := 0; i < len(args); i++ {
		next := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			return ""
		}
		switch args[i] {
		case "infinite":
			l.Infinite = true
		case "nodes":
			n, _ := strconv.ParseUint(next(), 10, 64)
			l.Nodes = n
		case "movetime":
			ms, _ := strconv.Atoi(next())
			l.MoveTime = time.Duration(ms) * time.Millisecond
		case "wtime":
			ms, _ := strconv.Atoi(next())
			l.WTime = time.Duration(ms) * time.Millisecond
		case "btime":
			ms, _ := strconv.Atoi(next())
			l.BTime = time.Duration(ms) * time.Millisecond
		case "winc":
			ms, _ := strconv.Atoi(next())
			l.WInc = time.Duration(ms) * time.Millisecond
		case "binc":
			ms, _ := strconv.Atoi(next())
			l.BInc = time.Duration(ms) * time.Millisecond
		case "movestogo":
			n, _ := strconv.Atoi(next())
			l.MovesToGo = n
		}
	}
	return l
}

// timeBudget turns GoLimits plus the side to move into soft/hard search
// deadlines, applying the searcher's configured time-fraction params (spec
// §5's time management: soft stop once the best move looks settled, hard
// stop regardless).
func (h *Handler) timeBudget(l GoLimits) (soft, hard time.Duration) {
	if l.Infinite {
		return time.Hour, time.Hour
	}
	if l.MoveTime > 0 {
		return l.MoveTime, l.MoveTime
	}

	var remaining, inc time.Duration
	if h.pos.STM() == 0 {
		remaining, inc = l.WTime, l.WInc
	} else {
		remaining, inc = l.BTime, l.BInc
	}
	if remaining <= 0 {
		return 5 * time.Second, 15 * time.Second
	}

	movesToGo := l.MovesToGo
	if movesToGo <= 0 {
		movesToGo = 30
	}
	alloc := remaining/time.Duration(movesToGo) + (inc*9)/10
	params := h.searcher.Params()
	soft = time.Duration(float32(alloc) * params.SoftTimeFrac)
	hard = time.Duration(float32(alloc) * params.HardTimeFrac)
	if hard > remaining/2 {
		hard = remaining / 2
	}
	if soft <= 0 {
		soft = 10 * time.Millisecond
	}
	if hard <= soft {
		hard = soft + 10*time.Millisecond
	}
	return soft, hard
}

// InfoView is a search snapshot with moves already rendered in the
// searched position's own notation, so uci.go/uai.go never need to touch a
// Game to print a line.
type InfoView struct {
	Depth    int
	SelDepth int
	Nodes    uint64
	NPS      uint64
	HashFull int
	Time     time.Duration
	ScoreCp  int32
	BestMove string
	PV       []string
}

func renderInfo(pos Game, info mcts.Info) InfoView {
	pv := make([]string, len(info.PV))
	for i, m := range info.PV {
		pv[i] = pos.MoveString(m)
	}
	best := "0000"
	if len(info.PV) > 0 {
		best = pv[0]
	}
	return InfoView{
		Depth:    info.Depth,
		SelDepth: info.SelDepth,
		Nodes:    info.Nodes,
		NPS:      info.NPS,
		HashFull: info.HashFull,
		Time:     info.Time,
		ScoreCp:  info.ScoreCp,
		BestMove: best,
		PV:       pv,
	}
}

// Go starts a search against the current position and blocks until it
// completes, calling infoLine for each progress snapshot and bestMove once
// at the end; uci.go/uai.go supply the protocol-specific line formatters.
func (h *Handler) Go(limits GoLimits, infoLine func(InfoView), bestMove func(InfoView)) {
	h.mu.Lock()
	pos := h.pos.Clone().(Game)
	soft, hard := h.timeBudget(limits)
	h.mu.Unlock()

	h.searching.Store(true)
	stopSignal := make(chan struct{})
	h.stopSignal = stopSignal
	h.doneSignal = make(chan struct{})
	defer close(h.doneSignal)
	defer h.searching.Store(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stopSignal:
			cancel()
		case <-ctx.Done():
		}
	}()

	move, info := h.searcher.Search(ctx, pos, h.Workers, soft, hard, func(i mcts.Info) {
		if infoLine != nil {
			infoLine(renderInfo(pos, i))
		}
	})
	view := renderInfo(pos, info)
	view.BestMove = pos.MoveString(move)
	bestMove(view)
}

// Stop requests the in-flight search end early and blocks until it does.
func (h *Handler) Stop() {
	if !h.searching.Load() {
		return
	}
	close(h.stopSignal)
	<-h.doneSignal
}

// SetOption routes a "setoption name X value Y" pair to the search params
// table, returning the error (if any) for the caller to report back to the
// client over the wire; an invalid name or value never touches the params
// table, so the previous value is always kept. Also logged via klog since
// an invalid setoption can also be a sign of a protocol client bug worth
// surfacing in the engine's own diagnostics.
func (h *Handler) SetOption(name, value string) error {
	if err := h.searcher.Params().SetOption(name, value); err != nil {
		klog.Warningf("protocol: setoption %s=%s: %v", name, value, err)
		return err
	}
	return nil
}

// optionNames lists the mcts.Params fields exposed as "setoption"
// targets, in the order both protocols advertise them.
var optionNames = []string{
	"Cpuct", "CpuctBase", "RootCpuct", "RootPst",
	"FpuBase", "FpuReduction", "PolicyTemp", "Scale",
	"DirichletAlpha", "DirichletEpsilon",
	"VirtualLoss", "SoftTimeFrac", "HardTimeFrac", "InfoIntervalMs",
}

// optionLines renders the "option name X type string" advertisement lines
// both protocols print in their handshake response. Every tunable is
// advertised as a free-form string rather than a typed spin/check, since
// the float32 params carry fractional defaults a UCI spin option can't
// express cleanly.
func optionLines() []string {
	lines := make([]string, len(optionNames))
	for i, name := range optionNames {
		lines[i] = fmt.Sprintf("option name %s type string default ", name)
	}
	return lines
}

// parseSetOption extracts the name/value pair from a "setoption name X
// value Y" argument list, tolerating multi-word names the way UCI allows.
func parseSetOption(args []string) (name, value string, ok bool) {
	var readingName, readingValue bool
	for _, a := range args {
		switch a {
		case "name":
			readingName, readingValue = true, false
		case "value":
			readingName, readingValue = false, true
		default:
			if readingName {
				if name != "" {
					name += " "
				}
				name += a
			} else if readingValue {
				if value != "" {
					value += " "
				}
				value += a
			}
		}
	}
	return name, value, name != ""
}

// formatInfoLine renders one search snapshot in UCI's "info" line grammar,
// shared by UCI directly and by UAI (spec treats UAI as close enough to
// UCI's wire format to reuse it verbatim apart from the handshake). Field
// order and presence (depth, seldepth, score cp, nodes, nps, hashfull,
// time, pv) follows spec's info-line contract exactly, for harness
// compatibility.
func formatInfoLine(v InfoView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "info depth %d seldepth %d score cp %d nodes %d nps %d hashfull %d time %d",
		v.Depth, v.SelDepth, v.ScoreCp, v.Nodes, v.NPS, v.HashFull, v.Time.Milliseconds())
	if len(v.PV) > 0 {
		b.WriteString(" pv ")
		b.WriteString(strings.Join(v.PV, " "))
	}
	return b.String()
}

// Bench runs a search from the current position with a one-hour soft and
// hard time limit and reports throughput, for the "bench" command both
// cmd/corvid and cmd/corvid-ataxx support as a standalone CLI flag (spec's
// regression/perf smoke test). The nodes argument is not used: the search
// ends at the time limit, when the best move is stable at the soft limit,
// or when the tree reaches MaxNodes.
func (h *Handler) Bench(out io.Writer, nodes uint64) {
	h.mu.Lock()
	pos := h.pos.Clone()
	h.mu.Unlock()

	start := time.Now()
	_, info := h.searcher.Search(context.Background(), pos, h.Workers, time.Hour, time.Hour, nil)
	elapsed := time.Since(start)
	nps := uint64(0)
	if elapsed > 0 {
		nps = uint64(float64(info.Nodes) / elapsed.Seconds())
	}
	fmt.Fprintf(out, "%d nodes %s %d nps\n", info.Nodes, elapsed.Round(time.Millisecond), nps)
}
