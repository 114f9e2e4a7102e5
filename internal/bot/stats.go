package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/udisondev/sessionbot/internal/audit"
)

// cmdStats reports process-host metrics plus the session counters. Each probe
// degrades independently: one failing collector must not blank the report.
func (b *Bot) cmdStats(ctx context.Context, upd Update) {
	lines := []string{"Server Stats"}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		lines = append(lines, fmt.Sprintf("CPU: %.1f%%", percents[0]))
	} else {
		slog.Warn("cpu probe failed", "err", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		lines = append(lines, fmt.Sprintf("Memory: %.1f%%", vm.UsedPercent))
	} else {
		slog.Warn("memory probe failed", "err", err)
	}

	if du, err := disk.Usage("/"); err == nil {
		lines = append(lines, fmt.Sprintf("Disk: %.1f%%", du.UsedPercent))
	} else {
		slog.Warn("disk probe failed", "err", err)
	}

	if uptime, err := host.Uptime(); err == nil {
		lines = append(lines, fmt.Sprintf("Uptime: %s", (time.Duration(uptime) * time.Second).String()))
	} else {
		slog.Warn("uptime probe failed", "err", err)
	}

	lines = append(lines,
		fmt.Sprintf("Bot uptime: %s", time.Since(b.startedAt).Round(time.Second)),
		fmt.Sprintf("Sessions: %d", b.store.GenerationCount()),
		fmt.Sprintf("Active flows: %d", b.registry.Count()),
	)

	if b.auditLog != nil {
		since := time.Now().Add(-24 * time.Hour)
		if n, err := b.auditLog.CountSince(ctx, audit.KindGenerated, since); err == nil {
			lines = append(lines, fmt.Sprintf("Generated (24h): %d", n))
		} else {
			slog.Warn("audit count failed", "err", err)
		}
	}

	b.reply(upd.ChatID, strings.Join(lines, "\n"))
}
