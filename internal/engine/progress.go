package engine

// ProgressSink receives telemetry while tables are migrated. Calls for
// different tables may arrive concurrently when more than one worker runs.
type ProgressSink interface {
	OnTableStart(table string, total int)
	OnRowProcessed(table string, index, total int)
	OnTableDone(report *TableReport)
}

type nopSink struct{}

func (nopSink) OnTableStart(string, int) {}
func (nopSink) OnRowProcessed(string, int, int) {}
func (nopSink) OnTableDone(*TableReport) {}
