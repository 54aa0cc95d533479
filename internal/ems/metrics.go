package ems

import "github.com/prometheus/client_golang/prometheus"

var (
	RegistrationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ems_registrations_total",
		Help: "Sessions admitted through the registration pipe",
	})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ems_active_sessions",
		Help: "Sessions currently bound to a worker",
	})

	QueuedSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ems_queued_sessions",
		Help: "Admitted sessions waiting for a free worker",
	})

	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ems_commands_total",
		Help: "Commands processed by operation and response status",
	}, []string{"op", "status"})

	CommandDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ems_command_duration_seconds",
		Help:    "Time to execute each command against the venue store",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	InvalidCommandsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ems_invalid_commands_total",
		Help: "Request lines dropped because they did not decode",
	})

	SessionFaultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ems_session_faults_total",
		Help: "Sessions abandoned because of a pipe error, by stage",
	}, []string{"stage"})

	InspectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ems_inspections_total",
		Help: "Active-session dumps written",
	})
)

func init() {
	prometheus.MustRegister(RegistrationsTotal)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(QueuedSessions)
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(CommandDuration)
	prometheus.MustRegister(InvalidCommandsTotal)
	prometheus.MustRegister(SessionFaultsTotal)
	prometheus.MustRegister(InspectionsTotal)
}
