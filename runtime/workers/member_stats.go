package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

type StatsRecorder interface {
	UpdateSelfStats(rss uint64, cpu float64)
}

// MemberStatsWorker samples memory and CPU of the node process,
// reported with the local member by list-members.
type MemberStatsWorker struct {
	log      *slog.Logger
	recorder StatsRecorder
	interval time.Duration
}

func NewMemberStatsWorker(log *slog.Logger, recorder StatsRecorder, interval time.Duration) *MemberStatsWorker {
	return &MemberStatsWorker{log: log, recorder: recorder, interval: interval}
}

func (w *MemberStatsWorker) Name() string { return "member-stats" }

func (w *MemberStatsWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	w.sample(p)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sample(p)
		}
	}
}

func (w *MemberStatsWorker) sample(p *process.Process) {
	rss, cpu, err := getSelfStats(p)
	if err != nil {
		w.log.Error("Failed to collect self stats", "err", err)
		return
	}
	w.recorder.UpdateSelfStats(rss, cpu)
}

// getSelfStats retrieves resident memory and CPU usage of the given process.
func getSelfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
