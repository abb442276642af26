// Command corvid is a UCI-speaking chess engine built on the parallel MCTS
// search core: network and engine.Threads from an optional corvid.toml,
// chess move generation from game/chess, everything else shared with
// cmd/corvid-ataxx.
package main

import (
	"flag"
	"os"
	"runtime"

	"k8s.io/klog/v2"

	"github.com/corvidchess/corvid/config"
	"github.com/corvidchess/corvid/game/chess"
	"github.com/corvidchess/corvid/mcts"
	"github.com/corvidchess/corvid/network"
	"github.com/corvidchess/corvid/policynet"
	"github.com/corvidchess/corvid/protocol"
	"github.com/corvidchess/corvid/valuenet"
)

var (
	flagConfig  = flag.String("config", "corvid.toml", "path to an optional TOML config file")
	flagNetwork = flag.String("network", "", "path to the packed network blob (overrides corvid.toml)")
	flagThreads = flag.Int("threads", 0, "search worker count (overrides corvid.toml, 0 = runtime.NumCPU())")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		klog.Fatalf("corvid: %v", err)
	}
	if *flagNetwork != "" {
		cfg.Network.Path = *flagNetwork
	}
	if *flagThreads > 0 {
		cfg.Engine.Threads = *flagThreads
	}
	if cfg.Engine.Threads <= 0 {
		cfg.Engine.Threads = runtime.NumCPU()
	}

	shape := network.Shape{
		ValueInput:         chess.ValueInput,
		ValueHidden:        16,
		PolicyInput:        chess.ValueInput,
		PolicyNumSquares:   chess.NumSquares,
		PolicySpecialSlots: 0,
	}
	var nets *network.Net
	if cfg.Network.Path != "" {
		nets, err = network.Load(cfg.Network.Path, shape)
		if err != nil {
			klog.Fatalf("corvid: %v", err)
		}
	} else {
		klog.Warning("corvid: no network configured, running with an untrained (zeroed) network")
		nets = &network.Net{
			Value:  valuenet.New(shape.ValueInput, shape.ValueHidden),
			Policy: policynet.New(shape.PolicyInput, shape.PolicyNumSquares, shape.PolicySpecialSlots),
		}
	}

	searcher := mcts.NewSearcher(mcts.Networks{Value: nets.Value, Policy: nets.Policy}, cfg.Search)
	factory := protocol.Factory{
		New: func() protocol.Game { return chess.New() },
		FromFEN: func(fen string) (protocol.Game, error) {
			p, err := chess.FromFEN(fen)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
	}
	handler := protocol.NewHandler("corvid", "corvid contributors", cfg.Engine.Threads, factory, searcher)

	if flag.Arg(0) == "bench" {
		handler.Bench(os.Stdout, 0)
		return
	}

	protocol.NewUCI(handler, os.Stdout).Run(os.Stdin)
}
