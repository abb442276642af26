// Command train runs self-play games with the production search core,
// records the resulting positions in binpack shards, and fits a float32
// checkpoint.Checkpoint from them for cmd/quantize to pack into a runtime
// blob. Self-play mirrors the self-play loop of
// _examples/Elvenson-alphabeth's Arena.Play (search every ply, record the
// position, backfill the result once the game ends); the optimizer is a
// direct translation of valuenet.go/policynet.go's own forward arithmetic
// into float32, not a gorgonia.org/gorgonia computation graph: both
// networks are sparse-feature accumulators, not dense matmuls, and training
// against the exact same arithmetic the runtime evaluates keeps a
// checkpoint's behavior predictable once quantized. gorgonia.org/tensor is
// still used for example batching, grounded on agogo.go's prepareExamples;
// shuffling and weight initialization follow that same file's
// shuffleExamples, a plain math/rand.Rand rather than the unwired
// leesper/go_rng (see DESIGN.md).
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/chewxy/math32"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"
	"k8s.io/klog/v2"

	"github.com/corvidchess/corvid/accum"
	"github.com/corvidchess/corvid/binpack"
	"github.com/corvidchess/corvid/checkpoint"
	"github.com/corvidchess/corvid/config"
	"github.com/corvidchess/corvid/features"
	"github.com/corvidchess/corvid/game"
	"github.com/corvidchess/corvid/game/ataxx"
	"github.com/corvidchess/corvid/game/chess"
	"github.com/corvidchess/corvid/mcts"
	"github.com/corvidchess/corvid/network"
	"github.com/corvidchess/corvid/policynet"
	"github.com/corvidchess/corvid/valuenet"
)

var (
	flagConfig  = flag.String("config", "corvid.toml", "path to an optional TOML config file")
	flagGame    = flag.String("game", "chess", "game to self-play: chess or ataxx")
	flagNetwork = flag.String("network", "", "starting network blob (overrides corvid.toml); omit to self-play from a fresh zeroed network")
	flagShards  = flag.String("shards", "", "directory to write/read binpack shards (required)")
	flagGames   = flag.Int("games", 0, "self-play games to run before training; 0 skips self-play and trains on existing shards")
	flagWorkers = flag.Int("workers", 0, "concurrent self-play games; 0 = runtime.NumCPU()")
	flagMoveMs  = flag.Int("movetime_ms", 200, "per-move search budget during self-play")

	flagEpochs    = flag.Int("epochs", 10, "training epochs over the accumulated shards")
	flagBatch     = flag.Int("batch", 256, "mini-batch size")
	flagLR        = flag.Float64("lr", 0.01, "SGD learning rate")
	flagOut       = flag.String("out", "", "path to write the gob-encoded checkpoint.Checkpoint (required)")
	flagValHidden = flag.Int("value_hidden", 16, "value network hidden width, must match an existing -network if one is given")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if *flagShards == "" || *flagOut == "" {
		klog.Fatal("train: -shards and -out are required")
	}

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		klog.Fatalf("train: %v", err)
	}

	shape, newGame, err := gameShape(*flagGame, *flagValHidden)
	if err != nil {
		klog.Fatalf("train: %v", err)
	}

	nets, err := loadOrZero(*flagNetwork, shape)
	if err != nil {
		klog.Fatalf("train: %v", err)
	}

	if err := os.MkdirAll(*flagShards, 0o755); err != nil {
		klog.Fatalf("train: %v", err)
	}

	if *flagGames > 0 {
		workers := *flagWorkers
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		moveTime := time.Duration(*flagMoveMs) * time.Millisecond
		if err := selfPlay(context.Background(), *flagGames, workers, *flagShards, newGame, nets, cfg.Search, moveTime); err != nil {
			klog.Fatalf("train: self-play: %v", err)
		}
	}

	records, err := loadShards(*flagShards)
	if err != nil {
		klog.Fatalf("train: %v", err)
	}
	if len(records) == 0 {
		klog.Fatal("train: no recorded positions to train on")
	}
	klog.Infof("train: fitting on %d recorded positions", len(records))

	ckpt := trainCheckpoint(records, shape, *flagEpochs, *flagBatch, float32(*flagLR))

	out, err := os.Create(*flagOut)
	if err != nil {
		klog.Fatalf("train: %v", err)
	}
	defer out.Close()
	if err := checkpoint.Save(out, ckpt); err != nil {
		klog.Fatalf("train: %v", err)
	}
	klog.Infof("train: wrote checkpoint to %s", *flagOut)
}

func gameShape(name string, valueHidden int) (network.Shape, func() game.Game, error) {
	switch name {
	case "chess":
		return network.Shape{
			ValueInput:         chess.ValueInput,
			ValueHidden:        valueHidden,
			PolicyInput:        chess.ValueInput,
			PolicyNumSquares:   chess.NumSquares,
			PolicySpecialSlots: 0,
		}, func() game.Game { return chess.New() }, nil
	case "ataxx":
		return network.Shape{
			ValueInput:         ataxx.ValueInput,
			ValueHidden:        valueHidden,
			PolicyInput:        ataxx.ValueInput,
			PolicyNumSquares:   ataxx.NumSquares,
			PolicySpecialSlots: 1,
		}, func() game.Game { return ataxx.New() }, nil
	}
	return network.Shape{}, nil, errors.Errorf("train: unknown -game %q", name)
}

func loadOrZero(path string, shape network.Shape) (mcts.Networks, error) {
	if path == "" {
		klog.Warning("train: no -network given, self-playing from a fresh zeroed network")
		return mcts.Networks{
			Value:  valuenet.New(shape.ValueInput, shape.ValueHidden),
			Policy: policynet.New(shape.PolicyInput, shape.PolicyNumSquares, shape.PolicySpecialSlots),
		}, nil
	}
	nets, err := network.Load(path, shape)
	if err != nil {
		return mcts.Networks{}, err
	}
	return mcts.Networks{Value: nets.Value, Policy: nets.Policy}, nil
}

// selfPlay runs games concurrently, one binpack shard per worker, and
// aggregates shard-close errors the way Elvenson-alphabeth's Agent.Close
// aggregates per-inferer close errors.
func selfPlay(ctx context.Context, totalGames, workers int, shardsDir string, newGame func() game.Game, nets mcts.Networks, params mcts.Params, moveTime time.Duration) error {
	if workers > totalGames {
		workers = totalGames
	}
	gamesPerWorker := make([]int, workers)
	for i := 0; i < totalGames; i++ {
		gamesPerWorker[i%workers]++
	}

	g, ctx := errgroup.WithContext(ctx)
	files := make([]*os.File, workers)
	for w := 0; w < workers; w++ {
		w := w
		shardPath := filepath.Join(shardsDir, fmt.Sprintf("shard-%04d.bin", w))
		f, err := os.Create(shardPath)
		if err != nil {
			return errors.WithMessage(err, "train: create shard")
		}
		files[w] = f

		n := gamesPerWorker[w]
		g.Go(func() error {
			writer := binpack.NewWriter(f)
			searcher := mcts.NewSearcher(nets, params)
			for i := 0; i < n; i++ {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err := playOneGame(ctx, searcher, newGame(), moveTime, nets.Policy, writer); err != nil {
					return err
				}
				searcher.NewGame()
			}
			return writer.Flush()
		})
	}

	runErr := g.Wait()

	var closeErrs error
	for _, f := range files {
		if err := f.Close(); err != nil {
			closeErrs = multierror.Append(closeErrs, err)
		}
	}
	if runErr != nil {
		return runErr
	}
	return closeErrs
}

// playOneGame plays pos to completion with one worker's searcher, recording
// one binpack.Record per ply, then backfills each Result by walking the
// move list backwards and flipping sign every ply, exactly how
// mcts.playout backpropagates a leaf value up the tree.
func playOneGame(ctx context.Context, searcher *mcts.Searcher, pos game.Game, moveTime time.Duration, policy *policynet.Net, w *binpack.Writer) error {
	var pending []binpack.Record
	for pos.Terminal() == game.Ongoing {
		move, _ := searcher.Search(ctx, pos, 1, moveTime, moveTime*2, nil)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		tree := searcher.Debug(1)
		flip := pos.Flip()
		moves := make([]binpack.VisitedMove, 0, len(tree.Children))
		for _, c := range tree.Children {
			if c.Visits == 0 {
				continue
			}
			from, to := pos.MoveSquares(c.Move)
			moves = append(moves, binpack.VisitedMove{
				Move:     c.Move,
				Visits:   c.Visits,
				FromSlot: fromSlotFor(policy, from, flip),
				ToSlot:   toSlotFor(policy, to, flip),
			})
		}
		pending = append(pending, binpack.Record{
			Hash:  pos.Hash(),
			Feats: pos.ValueFeats(),
			Moves: moves,
		})
		pos.Make(move)
	}

	value := terminalValue(pos.Terminal())
	for i := len(pending) - 1; i >= 0; i-- {
		value = -value
		pending[i].Result = value
		if err := w.Write(pending[i]); err != nil {
			return err
		}
	}
	return nil
}

func terminalValue(st game.State) float32 {
	switch st {
	case game.Won:
		return 1
	case game.Lost:
		return -1
	default:
		return 0
	}
}

// passSquare mirrors mcts's own sentinel (game.Game.MoveSquares' contract
// for a move with no board squares of its own).
const passSquare = -1

// fromSlotFor and toSlotFor duplicate mcts's (unexported) slot routing so
// recorded moves carry ready-to-train subnet indices without cmd/train
// needing to replay a position through a concrete Game to decode them
// again at training time.
func fromSlotFor(net *policynet.Net, sq, flip int) int {
	if sq == passSquare {
		return net.K() - 1
	}
	return net.FromSlot(sq, flip)
}

func toSlotFor(net *policynet.Net, sq, flip int) int {
	if sq == passSquare {
		return net.K() - 1
	}
	return net.ToSlot(sq, flip)
}

// loadShards reads every *.bin file in dir and concatenates their records.
func loadShards(dir string) ([]binpack.Record, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.bin"))
	if err != nil {
		return nil, errors.WithMessage(err, "train: glob shards")
	}
	var out []binpack.Record
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, errors.WithMessage(err, "train: open shard")
		}
		recs, err := binpack.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, errors.WithMessagef(err, "train: read shard %s", p)
		}
		out = append(out, recs...)
	}
	return out, nil
}

// trainParams is the float32 parameter set trainCheckpoint fits, mirroring
// checkpoint.ValueNet/PolicyNet's shape exactly so the result converts
// straight into a Checkpoint once training finishes.
type trainParams struct {
	value  checkpoint.ValueNet
	policy checkpoint.PolicyNet
}

// newTrainParams allocates a parameter set with small Gaussian-initialized
// weights, the way a freshly seeded network starts training from. Random
// draws use math/rand directly, matching the teacher's own
// agogo.go:shuffleExamples precedent of a plain rand.New(rand.NewSource(...))
// rather than reaching for the unwired leesper/go_rng (see DESIGN.md: its
// generator API isn't exercised anywhere in the retrieved pack, and this is
// the one place training correctness can't be double-checked against a
// verified signature).
func newTrainParams(shape network.Shape, seed int64) trainParams {
	r := rand.New(rand.NewSource(seed))
	initWeight := func() float32 { return float32(r.NormFloat64() * 0.05) }

	v := checkpoint.ValueNet{
		Input:  shape.ValueInput,
		Hidden: shape.ValueHidden,
	}
	v.L1Weights = make([][]float32, v.Input)
	for i := range v.L1Weights {
		v.L1Weights[i] = make([]float32, v.Hidden)
		for j := range v.L1Weights[i] {
			v.L1Weights[i][j] = initWeight()
		}
	}
	v.L1Bias = make([]float32, v.Hidden)
	v.L2Weights = make([]float32, v.Hidden)
	for i := range v.L2Weights {
		v.L2Weights[i] = initWeight()
	}

	numSubnets := 2*shape.PolicyNumSquares + shape.PolicySpecialSlots
	p := checkpoint.PolicyNet{
		Input:        shape.PolicyInput,
		NumSquares:   shape.PolicyNumSquares,
		SpecialSlots: shape.PolicySpecialSlots,
	}
	p.SubnetWeights = make([][][policynet.OutWidth]float32, numSubnets)
	p.SubnetBias = make([][policynet.OutWidth]float32, numSubnets)
	for s := range p.SubnetWeights {
		p.SubnetWeights[s] = make([][policynet.OutWidth]float32, p.Input)
		for f := range p.SubnetWeights[s] {
			for o := 0; o < policynet.OutWidth; o++ {
				p.SubnetWeights[s][f][o] = initWeight()
			}
		}
	}
	return trainParams{value: v, policy: p}
}

// trainCheckpoint fits a Checkpoint to records by minibatch SGD, training
// the value network against backfilled game results and the policy
// subnets against each position's visit-count distribution. Both losses
// and forward passes are float32 translations of valuenet.go/policynet.go's
// own quantized arithmetic (Scale, SCReLU, subnet dot products), so a
// trained checkpoint quantizes into a network that behaves the way it was
// trained to.
func trainCheckpoint(records []binpack.Record, shape network.Shape, epochs, batchSize int, lr float32) checkpoint.Checkpoint {
	params := newTrainParams(shape, 1)

	var results []float64
	for _, r := range records {
		results = append(results, float64(r.Result))
	}
	mean, stddev := stat.MeanStdDev(results, nil)
	klog.Infof("train: %d positions, result mean=%.4f stddev=%.4f", len(records), mean, stddev)

	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	shuffler := rand.New(rand.NewSource(2))

	for epoch := 0; epoch < epochs; epoch++ {
		shuffleInts(order, shuffler)
		var epochLoss float64
		batches := 0
		for start := 0; start < len(order); start += batchSize {
			end := start + batchSize
			if end > len(order) {
				end = len(order)
			}
			batch := order[start:end]
			loss := trainValueBatch(&params.value, records, batch, lr)
			loss += trainPolicyBatch(&params.policy, records, batch, lr)
			epochLoss += loss
			batches++
		}
		if batches > 0 {
			klog.V(1).Infof("train: epoch %d avg loss %.6f", epoch, epochLoss/float64(batches))
		}
	}

	return checkpoint.Checkpoint{Value: params.value, Policy: params.policy}
}

// shuffleInts Fisher-Yates shuffles order in place, the same
// rand.New(rand.NewSource(...)) + Intn(i+1) pattern agogo.go's
// shuffleExamples uses to reshuffle a training set between epochs.
func shuffleInts(order []int, r *rand.Rand) {
	for i := range order {
		j := r.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
}

// trainValueBatch runs one SGD step of the value network over the records
// indexed by batch, returning the batch's mean squared error.
func trainValueBatch(v *checkpoint.ValueNet, records []binpack.Record, batch []int, lr float32) float64 {
	gradL1W := make([][]float32, v.Input)
	for i := range gradL1W {
		gradL1W[i] = make([]float32, v.Hidden)
	}
	gradL1B := make([]float32, v.Hidden)
	gradL2W := make([]float32, v.Hidden)
	var gradL2B float32

	targets := make([]float32, len(batch))
	for i, idx := range batch {
		targets[i] = records[idx].Result
	}
	targetTensor := tensor.New(tensor.WithBacking(targets), tensor.WithShape(len(targets)))
	targetData := targetTensor.Data().([]float32)

	acc := make([]float32, v.Hidden)
	hidden := make([]float32, v.Hidden)

	var sumSqErr float64
	for bi, idx := range batch {
		feats := records[idx].Feats
		forwardValue(v, feats, acc, hidden)

		var z float32
		for h, hv := range hidden {
			z += hv * v.L2Weights[h]
		}
		z += v.L2Bias

		// The runtime net outputs cp = z*valuenet.Scale and mcts maps it
		// through tanh(cp/Params.Scale); both scales default to 400, so
		// the search sees tanh(z).
		pred := math32.Tanh(z)
		y := targetData[bi]
		diff := pred - y
		sumSqErr += float64(diff * diff)

		// dL/dz, scaled by 1/N for the batch mean already folded into lr's
		// effective step below via dividing by len(batch).
		dz := 2 * diff * (1 - pred*pred)

		gradL2B += dz
		for h, hv := range hidden {
			gradL2W[h] += dz * hv
			dh := dz * v.L2Weights[h]
			// SCReLU derivative: 2*clamp(x,0,1) inside the clamp range, 0
			// outside it.
			x := acc[h]
			var dAct float32
			if x > 0 && x < 1 {
				dAct = 2 * x
			}
			dacc := dh * dAct
			gradL1B[h] += dacc
			for _, f := range feats {
				gradL1W[f][h] += dacc
			}
		}
	}

	n := float32(len(batch))
	if n == 0 {
		return 0
	}
	scale := lr / n
	applyGrad(v.L1Bias, gradL1B, scale)
	applyGrad(v.L2Weights, gradL2W, scale)
	v.L2Bias -= scale * gradL2B
	for f := range gradL1W {
		if allZero(gradL1W[f]) {
			continue
		}
		applyGrad(v.L1Weights[f], gradL1W[f], scale)
	}
	return sumSqErr / float64(len(batch))
}

// applyGrad performs dst -= scale*grad lane-wise, the float32 vector update
// every weight tensor above needs; valuenet.go/policynet.go already do the
// quantized-integer form of this elementwise with accum.AddInPlace, so
// training mirrors it rather than reaching for a dense linear-algebra
// package for what is, at this width, a single pass over a slice.
func applyGrad(dst, grad []float32, scale float32) {
	for i := range dst {
		dst[i] -= scale * grad[i]
	}
}

func forwardValue(v *checkpoint.ValueNet, feats features.Sparse, acc, hidden []float32) {
	copy(acc, v.L1Bias)
	for _, f := range feats {
		row := v.L1Weights[f]
		for h := range acc {
			acc[h] += row[h]
		}
	}
	for h := range hidden {
		hidden[h] = accum.ScreluF32(acc[h])
	}
}

func allZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// trainPolicyBatch runs one SGD step of the policy subnets over the
// records indexed by batch, returning the batch's mean cross-entropy.
func trainPolicyBatch(p *checkpoint.PolicyNet, records []binpack.Record, batch []int, lr float32) float64 {
	gradW := make([][][policynet.OutWidth]float32, len(p.SubnetWeights))
	gradB := make([][policynet.OutWidth]float32, len(p.SubnetBias))
	touched := make(map[int]bool)

	var sumCE float64
	var nPositions int
	for _, idx := range batch {
		r := records[idx]
		if len(r.Moves) == 0 {
			continue
		}
		nPositions++

		var totalVisits uint32
		for _, m := range r.Moves {
			totalVisits += m.Visits
		}
		if totalVisits == 0 {
			continue
		}

		type forward struct {
			u, v             [policynet.OutWidth]float32
			uRelu, vRelu     [policynet.OutWidth]bool
			fromSlot, toSlot int
			logit            float32
		}
		fwds := make([]forward, len(r.Moves))
		logits := make([]float32, len(r.Moves))
		for i, m := range r.Moves {
			u, uRelu := subnetForward(p, m.FromSlot, r.Feats)
			v, vRelu := subnetForward(p, m.ToSlot, r.Feats)
			var dot float32
			for k := 0; k < policynet.OutWidth; k++ {
				dot += u[k] * v[k]
			}
			fwds[i] = forward{u: u, v: v, uRelu: uRelu, vRelu: vRelu, fromSlot: m.FromSlot, toSlot: m.ToSlot, logit: dot}
			logits[i] = dot
		}
		probs := policynet.Priors(logits, 1)

		for i, m := range r.Moves {
			target := float32(m.Visits) / float32(totalVisits)
			q := probs[i]
			if q > 1e-9 {
				sumCE += -float64(target) * math.Log(float64(q))
			}
			dLogit := q - target

			f := fwds[i]
			if !touched[f.fromSlot] {
				gradW[f.fromSlot] = make([][policynet.OutWidth]float32, p.Input)
			}
			if !touched[f.toSlot] {
				gradW[f.toSlot] = make([][policynet.OutWidth]float32, p.Input)
			}
			touched[f.fromSlot] = true
			touched[f.toSlot] = true
			for k := 0; k < policynet.OutWidth; k++ {
				du := dLogit * f.v[k]
				dv := dLogit * f.u[k]
				if f.uRelu[k] {
					gradB[f.fromSlot][k] += du
				}
				if f.vRelu[k] {
					gradB[f.toSlot][k] += dv
				}
				for _, feat := range r.Feats {
					if f.uRelu[k] {
						gradW[f.fromSlot][feat][k] += du
					}
					if f.vRelu[k] {
						gradW[f.toSlot][feat][k] += dv
					}
				}
			}
		}
	}

	if nPositions == 0 {
		return 0
	}
	scale := lr / float32(nPositions)
	for s := range touched {
		for k := 0; k < policynet.OutWidth; k++ {
			p.SubnetBias[s][k] -= scale * gradB[s][k]
		}
		for f := range gradW[s] {
			for k := 0; k < policynet.OutWidth; k++ {
				if gradW[s][f][k] != 0 {
					p.SubnetWeights[s][f][k] -= scale * gradW[s][f][k]
				}
			}
		}
	}
	return sumCE / float64(nPositions)
}

func subnetForward(p *checkpoint.PolicyNet, slot int, feats features.Sparse) ([policynet.OutWidth]float32, [policynet.OutWidth]bool) {
	var out [policynet.OutWidth]float32
	for k := range out {
		out[k] = p.SubnetBias[slot][k]
	}
	for _, f := range feats {
		row := p.SubnetWeights[slot][f]
		for k := 0; k < policynet.OutWidth; k++ {
			out[k] += row[k]
		}
	}
	var relu [policynet.OutWidth]bool
	for k := range out {
		if out[k] > 0 {
			relu[k] = true
		} else {
			out[k] = 0
		}
	}
	return out, relu
}
