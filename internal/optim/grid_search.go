// Package optim searches engine settings for the best headless run.
package optim

import (
	"context"
	"math"
	"sort"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/experiment"
)

// Objective scores a finished run; lower is better. +Inf rejects the run.
type Objective func(params map[string]float64, res *experiment.Result) float64

// GridSearch evaluates every combination of parameter values.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Trial is one evaluated grid point.
type Trial struct {
	Params map[string]float64
	Score  float64
	Err    error
}

// Search runs build for every grid point and returns the best parameters,
// their score and every trial in grid order. Failed runs score +Inf; best
// is nil when no run scored below +Inf.
func (g *GridSearch) Search(
	ctx context.Context,
	build func(params map[string]float64) (*experiment.Experiment, error),
	objective Objective,
) (best map[string]float64, score float64, trials []Trial, err error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, nil, dynamo.Validationf("%d parameter names for %d ranges", len(g.paramNames), len(g.ranges))
	}

	score = math.Inf(1)
	err = g.searchRecursive(ctx, 0, map[string]float64{}, func(params map[string]float64) {
		t := Trial{Params: params, Score: math.Inf(1)}
		exp, berr := build(params)
		if berr != nil {
			t.Err = berr
			trials = append(trials, t)
			return
		}
		res, rerr := exp.Run(ctx)
		if rerr != nil {
			t.Err = rerr
		} else {
			t.Score = objective(params, res)
		}
		trials = append(trials, t)

		if t.Score < score {
			score = t.Score
			best = params
		}
	})
	return best, score, trials, err
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, visit func(map[string]float64)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		visit(current)
		return nil
	}

	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[name] = val

		if err := g.searchRecursive(ctx, depth+1, next, visit); err != nil {
			return err
		}
	}
	return nil
}

// LargestStableDt prefers the largest dt whose run keeps the maximum
// relative energy drift within tol.
func LargestStableDt(tol float64) Objective {
	return func(params map[string]float64, res *experiment.Result) float64 {
		drift := res.Metrics["energy_drift"]
		if math.IsNaN(drift) || drift > tol {
			return math.Inf(1)
		}
		return -params["dt"]
	}
}

// Sorted returns the trials ordered by score, failures last.
func Sorted(trials []Trial) []Trial {
	out := append([]Trial(nil), trials...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out
}
