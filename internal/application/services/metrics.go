package services

import "github.com/prometheus/client_golang/prometheus"

// BoardMetrics holds the prometheus collectors for board activity. They
// are registered on the server's registry alongside the HTTP metrics.
type BoardMetrics struct {
	TransitionsApplied    prometheus.Counter
	TransitionsConfirmed  prometheus.Counter
	TransitionsRolledBack prometheus.Counter
	TransitionsSuperseded prometheus.Counter
	TransitionsStale      prometheus.Counter
	TransitionsRejected   prometheus.Counter
	ColumnsCreated        prometheus.Counter
	ColumnsRenamed        prometheus.Counter
	ColumnsDeleted        prometheus.Counter
	ColumnOpsFailed       prometheus.Counter
}

// NewBoardMetrics creates the board collectors.
func NewBoardMetrics() *BoardMetrics {
	return &BoardMetrics{
		TransitionsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_transitions_applied_total",
			Help: "Status transitions applied optimistically",
		}),
		TransitionsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_transitions_confirmed_total",
			Help: "Status transitions confirmed by the remote store",
		}),
		TransitionsRolledBack: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_transitions_rolled_back_total",
			Help: "Status transitions rolled back after remote rejection",
		}),
		TransitionsSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_transitions_superseded_total",
			Help: "Status transitions superseded by a newer intent",
		}),
		TransitionsStale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_transitions_stale_total",
			Help: "Confirmation responses ignored because a newer transition took over",
		}),
		TransitionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_transitions_rejected_total",
			Help: "Status transitions rejected before any state change",
		}),
		ColumnsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_columns_created_total",
			Help: "Columns created",
		}),
		ColumnsRenamed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_columns_renamed_total",
			Help: "Columns renamed",
		}),
		ColumnsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_columns_deleted_total",
			Help: "Columns deleted",
		}),
		ColumnOpsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_column_ops_failed_total",
			Help: "Column operations that failed at the remote store",
		}),
	}
}

// Collectors returns every collector for registration.
func (m *BoardMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.TransitionsApplied,
		m.TransitionsConfirmed,
		m.TransitionsRolledBack,
		m.TransitionsSuperseded,
		m.TransitionsStale,
		m.TransitionsRejected,
		m.ColumnsCreated,
		m.ColumnsRenamed,
		m.ColumnsDeleted,
		m.ColumnOpsFailed,
	}
}
