package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"creator-archiver/internal/discovery"
)

var (
	statusTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	statusOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	statusWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
)

type statusResult struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	discovery.StatusResult
}

func runStatus(ctx context.Context, args []string) error {
	fs, common := newCommandFlags("status")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := openSession(ctx, fs, *common.configPath, false)
	if err != nil {
		return err
	}
	defer s.close()

	st, err := discovery.StoreStatus(s.stateDir)
	if err != nil {
		return err
	}
	res := statusResult{AccountID: s.cfg.Basic.UID, AccountName: s.accountName, StatusResult: st}
	if *common.jsonOut {
		return printJSON(res)
	}

	fmt.Println(renderStatus(res))
	if st.State == discovery.StateNeverSynced {
		fmt.Println("next: creator-archiver run")
	}
	return nil
}

func renderStatus(res statusResult) string {
	row := func(label, value string) string {
		return statusLabelStyle.Render(label) + " " + value
	}

	lines := []string{
		statusTitleStyle.Render(fmt.Sprintf("%s (%s)", res.AccountName, res.AccountID)),
		row("state", renderState(res.State)),
		row("state file", res.StateFile),
	}
	if res.State != discovery.StateNeverSynced {
		lines = append(lines,
			row("videos", fmt.Sprintf("%d/%d downloaded", res.Downloaded, res.Total)),
			row("pending", fmt.Sprintf("%d", res.Pending)),
			row("duration", fmt.Sprintf("%s of %s",
				discovery.FormatDuration(res.DownloadedSeconds),
				discovery.FormatDuration(res.TotalSeconds))),
		)
		if res.UnknownDurations > 0 {
			lines = append(lines, row("no duration", fmt.Sprintf("%d", res.UnknownDurations)))
		}
	}
	if r := res.LastRun; r != nil {
		finished := r.FinishedAt
		if r.Aborted {
			finished += " (aborted)"
		}
		lines = append(lines,
			row("last run", r.RunID),
			row("finished", finished),
			row("outcomes", fmt.Sprintf("completed=%d exhausted=%d skipped=%d attempts=%d",
				r.Completed, r.Exhausted, r.Skipped, r.Attempts)),
		)
		if r.Exhausted > 0 {
			lines = append(lines, row("error log", r.ErrorLog))
		}
		if r.Error != "" {
			lines = append(lines, row("error", statusErrorStyle.Render(r.Error)))
		}
	}
	return strings.Join(lines, "\n")
}

func renderState(state string) string {
	switch state {
	case discovery.StateComplete:
		return statusOKStyle.Render(state)
	case discovery.StateAttention:
		return statusErrorStyle.Render(state)
	default:
		return statusWarnStyle.Render(state)
	}
}
