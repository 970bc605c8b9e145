// Package trainer drives mini-batch training of a layered network over a pool
// of worker replicas.
package trainer

import (
	"context"
	"sync"
	"time"

	"layernet/m"
	"layernet/nn"
	"layernet/utils"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// BuildNetwork creates the network described by cfg.
func BuildNetwork(cfg utils.Config) (*nn.LayeredNetwork, error) {
	if err := utils.ValidateConfig(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	style := nn.Supervised
	if cfg.Unsupervised {
		style = nn.Unsupervised
	}
	net, err := nn.NewLayeredNetwork(nn.Config{
		LearningRate:         cfg.LearningRate,
		MomentumWeight:       cfg.MomentumWeight,
		RegularizationWeight: cfg.RegularizationWeight,
		CostFunction:         cfg.CostFunction,
		Transformer:          cfg.Transformer,
		LearningStyle:        style,
		TrainingMethod:       nn.GradientDescent,
		DropRate:             cfg.DropRate,
		Seed:                 cfg.Seed,
	})
	if err != nil {
		return nil, err
	}

	last := len(cfg.Architecture) - 1
	for i, size := range cfg.Architecture {
		var act, class string
		if i > 0 {
			act, class = cfg.Activations[i-1], cfg.NeuronClass
		}
		if _, err := net.AddLayer(size, i == last, act, class); err != nil {
			return nil, err
		}
	}
	return net, nil
}

// Trainer runs synchronous data-parallel gradient descent. Each worker trains
// its shard of a batch on a private replica; the summed updates are applied to
// the master network once per batch.
type Trainer struct {
	net     *nn.LayeredNetwork
	cfg     utils.Config
	workers []*nn.LayeredNetwork

	iteration int64
	rng       *rand.Rand

	Stats utils.TimingStats
}

type shardResult struct {
	updates []*mat.Dense
	cost    float64
	elapsed time.Duration
	err     error
}

// New returns a trainer for net. Only the Epochs, BatchSize, Workers and Seed
// fields of cfg are used.
func New(net *nn.LayeredNetwork, cfg utils.Config) (*Trainer, error) {
	if net == nil {
		return nil, errors.New("nil network")
	}
	if cfg.Epochs <= 0 || cfg.BatchSize <= 0 || cfg.Workers <= 0 {
		return nil, errors.Errorf("epochs, batch size and workers must be positive, got %d, %d, %d",
			cfg.Epochs, cfg.BatchSize, cfg.Workers)
	}
	return &Trainer{
		net: net,
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Iteration returns the number of batches applied so far.
func (t *Trainer) Iteration() int64 { return t.iteration }

// Train runs cfg.Epochs passes over data, shuffling it before each one, and
// returns the mean per-instance training error of the last epoch. The master
// network is left out of training mode on return.
func (t *Trainer) Train(ctx context.Context, data []nn.Instance) (float64, error) {
	if len(data) == 0 {
		return 0, errors.New("no training data")
	}
	start := time.Now()
	mean, err := t.train(ctx, data)
	t.Stats.TotalTime += time.Since(start)
	if err != nil {
		return 0, err
	}
	utils.PrintTimingStats(&t.Stats, t.Stats.Batches)
	return mean, nil
}

func (t *Trainer) train(ctx context.Context, data []nn.Instance) (float64, error) {
	t.net.SetTraining(true)
	defer t.net.SetTraining(false)

	initStart := time.Now()
	if len(t.workers) == 0 {
		t.workers = make([]*nn.LayeredNetwork, t.cfg.Workers)
		for i := range t.workers {
			t.workers[i] = t.net.Clone()
		}
	}
	t.Stats.ModelInitTime += time.Since(initStart)

	order := append([]nn.Instance(nil), data...)
	var mean float64
	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		t.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		total := 0.0
		for _, batch := range createBatches(order, t.cfg.BatchSize) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			cost, err := t.trainBatch(batch)
			if err != nil {
				return 0, errors.Wrapf(err, "epoch %d, iteration %d", epoch, t.iteration)
			}
			total += cost
		}
		mean = total / float64(len(order))
		utils.Logf("epoch %d/%d: mean training error %.6f", epoch, t.cfg.Epochs, mean)
	}
	return mean, nil
}

// trainBatch trains one batch across the workers and applies the merged
// updates. It returns the summed training error of the batch.
func (t *Trainer) trainBatch(batch []nn.Instance) (float64, error) {
	master := t.net.WeightMatrices()
	dropRate := t.net.DropRate()
	shards := split(batch, len(t.workers))
	results := make([]shardResult, len(shards))

	var wg sync.WaitGroup
	for i, shard := range shards {
		wg.Add(1)
		go func(w *nn.LayeredNetwork, shard []nn.Instance, res *shardResult) {
			defer wg.Done()
			*res = runShard(w, master, dropRate, shard, t.iteration)
		}(t.workers[i], shard, &results[i])
	}
	wg.Wait()

	mergeStart := time.Now()
	var sum []*mat.Dense
	cost := 0.0
	for _, res := range results {
		if res.err != nil {
			return 0, res.err
		}
		t.Stats.TrainStepTime += res.elapsed
		cost += res.cost
		if sum == nil {
			sum = res.updates
			continue
		}
		m.AddAll(sum, res.updates)
	}
	t.Stats.MergeTime += time.Since(mergeStart)

	updateStart := time.Now()
	if err := t.net.UpdateWeightMatrices(sum); err != nil {
		return 0, err
	}
	t.Stats.UpdateTime += time.Since(updateStart)

	t.iteration++
	t.Stats.Instances += len(batch)
	t.Stats.Batches++
	return cost, nil
}

// runShard syncs w with the master weights and drop rate and trains it on
// shard, summing the per-instance updates without applying them.
func runShard(w *nn.LayeredNetwork, master []*mat.Dense, dropRate float64, shard []nn.Instance, iteration int64) shardResult {
	start := time.Now()
	if err := w.SetWeightMatrices(master); err != nil {
		return shardResult{err: err}
	}
	if err := w.SetDropRate(dropRate); err != nil {
		return shardResult{err: err}
	}
	res := shardResult{updates: m.ZerosLikeAll(master)}
	for _, inst := range shard {
		updates, err := w.TrainByInstance(iteration, inst)
		if err != nil {
			return shardResult{err: err}
		}
		m.AddAll(res.updates, updates)
		res.cost += w.TrainingError()
	}
	res.elapsed = time.Since(start)
	return res
}

// Evaluate returns the mean cost of the network's outputs over data. The
// labels of an unsupervised network are its transformed features.
func (t *Trainer) Evaluate(data []nn.Instance) (float64, error) {
	return Evaluate(t.net, data, &t.Stats)
}

// Evaluate returns the mean cost of net over data, adding the time spent to
// stats when it is not nil.
func Evaluate(net *nn.LayeredNetwork, data []nn.Instance, stats *utils.TimingStats) (float64, error) {
	if len(data) == 0 {
		return 0, errors.New("no evaluation data")
	}
	start := time.Now()
	cost := net.CostFunction()
	total := 0.0
	for i, inst := range data {
		out, err := net.GetOutput(inst.Features)
		if err != nil {
			return 0, errors.Wrapf(err, "instance %d", i)
		}
		labels := inst.Label
		if net.LearningStyle() == nn.Unsupervised {
			labels = net.Transformer().Transform(inst.Features)
		}
		if len(labels) != len(out) {
			return 0, errors.Errorf("instance %d: %d labels for %d outputs", i, len(labels), len(out))
		}
		for j := range out {
			total += cost.Cost(labels[j], out[j])
		}
	}
	if stats != nil {
		stats.EvaluateTime += time.Since(start)
	}
	return total / float64(len(data)), nil
}
