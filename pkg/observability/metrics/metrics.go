package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	tablesUploaded        atomic.Int64
	pipelineRuns          atomic.Int64
	identifiersResolved   atomic.Int64
	identifiersUnresolved atomic.Int64
	recordsRemoved        atomic.Int64
	abnormalDetected      atomic.Int64
)

func IncTableUploaded() {
	tablesUploaded.Add(1)
}

func ObserveRun(resolved, unresolved, removedRecords, abnormal int) {
	pipelineRuns.Add(1)
	identifiersResolved.Add(int64(resolved))
	identifiersUnresolved.Add(int64(unresolved))
	recordsRemoved.Add(int64(removedRecords))
	abnormalDetected.Add(int64(abnormal))
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP labtest_tables_uploaded_total Number of tables accepted by the upload endpoint.\n")
	fmt.Fprintf(w, "# TYPE labtest_tables_uploaded_total counter\n")
	fmt.Fprintf(w, "labtest_tables_uploaded_total %d\n", tablesUploaded.Load())

	fmt.Fprintf(w, "# HELP labtest_pipeline_runs_total Number of completed pipeline runs.\n")
	fmt.Fprintf(w, "# TYPE labtest_pipeline_runs_total counter\n")
	fmt.Fprintf(w, "labtest_pipeline_runs_total %d\n", pipelineRuns.Load())

	fmt.Fprintf(w, "# HELP labtest_identifiers_resolved_total Number of raw identifiers mapped to a catalog code.\n")
	fmt.Fprintf(w, "# TYPE labtest_identifiers_resolved_total counter\n")
	fmt.Fprintf(w, "labtest_identifiers_resolved_total %d\n", identifiersResolved.Load())

	fmt.Fprintf(w, "# HELP labtest_identifiers_unresolved_total Number of raw identifiers passed through unresolved.\n")
	fmt.Fprintf(w, "# TYPE labtest_identifiers_unresolved_total counter\n")
	fmt.Fprintf(w, "labtest_identifiers_unresolved_total %d\n", identifiersUnresolved.Load())

	fmt.Fprintf(w, "# HELP labtest_records_removed_total Number of patient records dropped by cleaning and outlier filtering.\n")
	fmt.Fprintf(w, "# TYPE labtest_records_removed_total counter\n")
	fmt.Fprintf(w, "labtest_records_removed_total %d\n", recordsRemoved.Load())

	fmt.Fprintf(w, "# HELP labtest_abnormal_tests_total Number of significant abnormal values surfaced.\n")
	fmt.Fprintf(w, "# TYPE labtest_abnormal_tests_total counter\n")
	fmt.Fprintf(w, "labtest_abnormal_tests_total %d\n", abnormalDetected.Load())
}
