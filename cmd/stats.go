package cmd

import (
	"bytes"
	"fmt"

	"github.com/achilleasa/pathpool/renderer"
	"github.com/olekukonko/tablewriter"
)

func displayFrameStats(stats renderer.FrameStats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Worker", "Generation", "Seed", "State", "Frames", "% of frames", "Failures", "Last render time"})
	for _, stat := range stats.Workers {
		var percent float64
		if stats.Frames > 0 {
			percent = 100 * float64(stat.Frames) / float64(stats.Frames)
		}
		state := stat.State.String()
		if stat.Failed {
			state = "failed"
		}
		table.Append([]string{
			fmt.Sprintf("%d", stat.Id),
			fmt.Sprintf("%d", stat.Generation),
			fmt.Sprintf("%d", stat.Seed),
			state,
			fmt.Sprintf("%d", stat.Frames),
			fmt.Sprintf("%02.1f %%", percent),
			fmt.Sprintf("%d", stat.Failures),
			stat.RenderTime.String(),
		})
	}
	table.SetFooter([]string{"", "", "", fmt.Sprintf("%d live", stats.LiveCount), fmt.Sprintf("%d", stats.Frames), "", "TOTAL", stats.Elapsed.String()})

	table.Render()
	logger.Noticef("frame statistics (session %s)\n%s", stats.Session, buf.String())
}
