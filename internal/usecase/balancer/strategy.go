package balancer

import (
	"math"
	"math/rand"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
)

const (
	RoundRobin       = "round-robin"
	LeastConnections = "least-connections"
	Weighted         = "weighted"
	HealthBased      = "health-based"
)

var Strategies = []string{RoundRobin, LeastConnections, Weighted, HealthBased}

func validStrategy(name string) bool {
	for _, s := range Strategies {
		if s == name {
			return true
		}
	}

	return false
}

// Weights of the health-based score terms.
type Weights struct {
	Reliability float64 `json:"reliability" mapstructure:"reliability"`
	Speed       float64 `json:"speed" mapstructure:"speed"`
	Load        float64 `json:"load" mapstructure:"load"`
}

var DefaultWeights = Weights{Reliability: 0.4, Speed: 0.3, Load: 0.3}

// roundRobin walks the full roster from the cursor and skips unhealthy nodes.
func roundRobin(nodes []*entity.WorkerNode, cursor *int) *entity.WorkerNode {
	n := len(nodes)
	for i := 0; i < n; i++ {
		idx := (*cursor + i) % n
		if nodes[idx].Healthy {
			*cursor = (idx + 1) % n

			return nodes[idx]
		}
	}

	return nil
}

func leastConnections(healthy []*entity.WorkerNode) *entity.WorkerNode {
	var best *entity.WorkerNode
	for _, node := range healthy {
		if best == nil || node.ActiveJobs < best.ActiveJobs {
			best = node
		}
	}

	return best
}

// weighted draws proportionally to weight; all-zero weights fall back to a uniform draw.
func weighted(healthy []*entity.WorkerNode, rnd *rand.Rand) *entity.WorkerNode {
	total := 0
	for _, node := range healthy {
		if node.Weight > 0 {
			total += node.Weight
		}
	}

	if total == 0 {
		return healthy[rnd.Intn(len(healthy))]
	}

	r := rnd.Intn(total)
	for _, node := range healthy {
		if node.Weight <= 0 {
			continue
		}
		if r < node.Weight {
			return node
		}
		r -= node.Weight
	}

	return healthy[len(healthy)-1]
}

func healthBased(healthy []*entity.WorkerNode, w Weights) *entity.WorkerNode {
	var (
		best      *entity.WorkerNode
		bestScore = math.Inf(-1)
	)

	for _, node := range healthy {
		if s := Score(node, w); s > bestScore {
			best, bestScore = node, s
		}
	}

	return best
}

// Score is the health-based ranking of a node. A node with no timing
// samples gets the full speed term.
func Score(n *entity.WorkerNode, w Weights) float64 {
	speed := 1.0
	if n.AvgProcessingTime > 0 {
		speed = 1 / n.AvgProcessingTime
	}

	return w.Reliability*(1-n.FailureRate()) +
		w.Speed*speed +
		w.Load*(1/float64(n.ActiveJobs+1))
}

// variance is the population variance of per-node assignment counts.
func variance(nodes []*entity.WorkerNode) float64 {
	if len(nodes) == 0 {
		return 0
	}

	mean := 0.0
	for _, n := range nodes {
		mean += float64(n.Assigned)
	}
	mean /= float64(len(nodes))

	v := 0.0
	for _, n := range nodes {
		d := float64(n.Assigned) - mean
		v += d * d
	}

	return v / float64(len(nodes))
}
