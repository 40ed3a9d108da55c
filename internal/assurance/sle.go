package assurance

import (
	"fmt"

	"github.com/imamik/siteflow/internal/platform/vendor"
)

// DefaultMetrics are the SLE classifiers sampled when the config does not
// name its own set.
var DefaultMetrics = []string{
	"time-to-connect",
	"successful-connects",
	"coverage",
	"throughput",
	"roaming",
}

// DefaultThreshold is the pass mark applied to every metric unless
// overridden. Scores are percentages in [0, 100].
const DefaultThreshold = 90.0

// Breach records a single metric whose sampled score fell below the
// threshold.
type Breach struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

func (b Breach) String() string {
	return fmt.Sprintf("%s=%.1f below threshold %.1f", b.Metric, b.Value, b.Threshold)
}

// Verdict is the outcome of evaluating one batch of SLE samples.
type Verdict struct {
	Passed   bool
	Breaches []Breach
}

// Evaluate compares every sampled score against the threshold. A single
// score below the threshold fails the verdict; scores for metrics outside
// the requested set are still evaluated, since the platform only returns
// what was asked for.
func Evaluate(scores []vendor.SLEScore, threshold float64) Verdict {
	v := Verdict{Passed: true}
	for _, s := range scores {
		if s.Value < threshold {
			v.Passed = false
			v.Breaches = append(v.Breaches, Breach{
				Metric:    s.Name,
				Value:     s.Value,
				Threshold: threshold,
			})
		}
	}
	return v
}
