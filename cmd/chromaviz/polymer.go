package main

import (
	"math/rand/v2"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/chewxy/math32"
)

// syntheticPolymer builds a persistent random walk and lets it drift over the timesteps. Every
// step keeps consecutive beads one bond length apart, so the chain stays connected as it moves.
func syntheticPolymer(cfg PolymerConfig) [][]common.Vec3f {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	bond := math32.Max(cfg.Bond, 1e-3)

	first := make([]common.Vec3f, cfg.Points)
	dir := common.Vec3f{1, 0, 0}
	for i := 1; i < cfg.Points; i++ {
		dir = dir.Scale(0.7).Add(randomUnit(rng).Scale(0.6)).Normalize()
		first[i] = first[i-1].Add(dir.Scale(bond))
	}
	center := common.Centroid(first)
	for i := range first {
		first[i] = first[i].Sub(center)
	}

	frames := [][]common.Vec3f{first}
	for t := 1; t < cfg.Timesteps; t++ {
		prev := frames[t-1]
		next := make([]common.Vec3f, len(prev))
		for i, p := range prev {
			next[i] = p.Add(randomUnit(rng).Scale(cfg.Drift))
		}
		relaxBonds(next, bond)
		frames = append(frames, next)
	}
	return frames
}

// relaxBonds pulls consecutive beads back to the bond length, sweeping forward and then backward.
func relaxBonds(points []common.Vec3f, bond float32) {
	fix := func(anchor, moved common.Vec3f) common.Vec3f {
		d := moved.Sub(anchor)
		l := d.Length()
		if l < 1e-6 {
			return moved
		}
		return anchor.Add(d.Scale(bond / l))
	}
	for i := 1; i < len(points); i++ {
		points[i] = fix(points[i-1], points[i])
	}
	for i := len(points) - 2; i >= 0; i-- {
		mid := fix(points[i+1], points[i])
		points[i] = points[i].Add(mid).Scale(0.5)
	}
}

func randomUnit(rng *rand.Rand) common.Vec3f {
	for {
		v := common.Vec3f{rng.Float32()*2 - 1, rng.Float32()*2 - 1, rng.Float32()*2 - 1}
		if l := v.LengthSquared(); l > 1e-4 && l <= 1 {
			return v.Scale(1 / math32.Sqrt(l))
		}
	}
}
