package client

import (
	"github.com/VictoriaMetrics/metrics"
)

// Client side metrics. They are registered in the default set of
// VictoriaMetrics/metrics and exported by metrics.WritePrometheus.
var (
	txCommits         = metrics.NewCounter(`respkv_client_transactions_total{result="committed"}`)
	txAborts          = metrics.NewCounter(`respkv_client_transactions_total{result="aborted"}`)
	txIntegrityErrors = metrics.NewCounter(`respkv_client_transactions_total{result="integrity_error"}`)
	txFailures        = metrics.NewCounter(`respkv_client_transactions_total{result="failed"}`)
	txRollbacks       = metrics.NewCounter(`respkv_client_transactions_total{result="rolled_back"}`)

	// committed transactions whose type ids could not be registered afterwards
	txTypeIDFailures = metrics.NewCounter(`respkv_client_type_id_registration_failures_total`)

	txCommitDuration = metrics.NewHistogram(`respkv_client_transaction_commit_duration_seconds`)
	txCommandCount   = metrics.NewHistogram(`respkv_client_transaction_commands`)

	pipelineFlushes = metrics.NewCounter(`respkv_client_pipeline_flushes_total`)
)
