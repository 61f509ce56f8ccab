package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(buildInfo)
}

// Version and Commit are overridden at link time:
// -ldflags "-X .../metrics.Version=v1.2.3 -X .../metrics.Commit=abc123"
var (
	Version = "dev"
	Commit  = "none"
)

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A constant metric with labels for version and commit hash.",
	},
	[]string{"version", "commit"},
)

func SetBuildInfo() {
	buildInfo.WithLabelValues(Version, Commit).Set(1)
}
