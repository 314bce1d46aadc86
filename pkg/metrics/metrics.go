package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Role metrics
	RaftIsLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_is_leader",
			Help: "Whether this node believes it is the Raft leader (1 = leader, 0 = not)",
		},
	)

	RaftCurrentTerm = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_current_term",
			Help: "Current Raft term",
		},
	)

	RaftElectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raftcore_elections_total",
			Help: "Total number of elections started by this node",
		},
	)

	RaftVotesGrantedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raftcore_votes_granted_total",
			Help: "Total number of RequestVote RPCs this node granted",
		},
	)

	// Log metrics
	RaftLastLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_last_log_index",
			Help: "Index of the last entry in the local log",
		},
	)

	RaftCommitIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_commit_index",
			Help: "Highest log index known to be committed",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_applied_index",
			Help: "Highest log index applied to the FSM",
		},
	)

	RaftLogEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_log_entries",
			Help: "Number of entries currently held in the in-memory log",
		},
	)

	// Replication metrics (leader only)
	RaftReplicationLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raftcore_replication_lag",
			Help: "last_index minus match_index for a follower",
		},
		[]string{"follower_id"},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raftcore_apply_duration_seconds",
			Help:    "Time from Apply() call to commit for leader-submitted entries",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Snapshot metrics
	RaftSnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raftcore_snapshots_total",
			Help: "Total number of snapshots taken",
		},
	)

	RaftSnapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raftcore_snapshot_duration_seconds",
			Help:    "Time taken to take and persist a snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	RaftInstallSnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raftcore_install_snapshots_total",
			Help: "Total number of InstallSnapshot RPCs received and applied",
		},
	)

	// Membership metrics
	RaftServersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_servers_total",
			Help: "Number of servers in the committed configuration",
		},
	)

	RaftVotersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_voters_total",
			Help: "Number of voting servers in the committed configuration",
		},
	)
)

func init() {
	prometheus.MustRegister(RaftIsLeader)
	prometheus.MustRegister(RaftCurrentTerm)
	prometheus.MustRegister(RaftElectionsTotal)
	prometheus.MustRegister(RaftVotesGrantedTotal)
	prometheus.MustRegister(RaftLastLogIndex)
	prometheus.MustRegister(RaftCommitIndex)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(RaftLogEntries)
	prometheus.MustRegister(RaftReplicationLag)
	prometheus.MustRegister(RaftApplyDuration)
	prometheus.MustRegister(RaftSnapshotsTotal)
	prometheus.MustRegister(RaftSnapshotDuration)
	prometheus.MustRegister(RaftInstallSnapshotsTotal)
	prometheus.MustRegister(RaftServersTotal)
	prometheus.MustRegister(RaftVotersTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
