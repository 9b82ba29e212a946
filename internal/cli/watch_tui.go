package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"creator-archiver/internal/archive"
)

const (
	watchLogLines     = 6
	watchEventBuffer  = 256
	watchMinBarWidth  = 10
	watchMaxBarWidth  = 60
	watchDefaultWidth = 40
)

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	watchMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	watchOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

type watchEventMsg struct {
	event archive.Event
}

type watchDoneMsg struct {
	err error
}

// runWithTUI runs the archive behind a bubbletea view. Events reach the view
// through a bounded channel so a slow terminal never stalls the download.
// Quitting the view cancels the run; the view stays up until the in-flight
// item has been saved.
func runWithTUI(ctx context.Context, opts archive.RunOptions, extra archive.Observer) (archive.RunResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := archive.NewChannelObserver(watchEventBuffer)
	opts.Observer = archive.MultiObserver{extra, events}

	p := tea.NewProgram(newWatchModel(cancel))

	var (
		res    archive.RunResult
		runErr error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer events.Close()
		res, runErr = archive.Run(ctx, opts)
	}()
	go func() {
		for e := range events.Events() {
			p.Send(watchEventMsg{event: e})
		}
		<-finished
		p.Send(watchDoneMsg{err: runErr})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-finished
		if runErr != nil || res.Aborted {
			return res, runErr
		}
		return res, fmt.Errorf("progress view: %w", err)
	}
	<-finished
	return res, runErr
}

type watchModel struct {
	spinner spinner.Model
	bar     progress.Model
	cancel  context.CancelFunc

	catalog  string
	current  string
	attempt  string
	transfer string
	percent  float64
	log      []string

	result   *archive.RunResult
	err      error
	stopping bool
	done     bool
}

func newWatchModel(cancel context.CancelFunc) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = watchTitleStyle
	return watchModel{
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(watchDefaultWidth)),
		cancel:  cancel,
	}
}

func (m watchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.stopping && !m.done {
				m.stopping = true
				if m.cancel != nil {
					m.cancel()
				}
			}
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.bar.Width = max(watchMinBarWidth, min(msg.Width-4, watchMaxBarWidth))
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case watchEventMsg:
		return m.applyEvent(msg.event), nil
	case watchDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m watchModel) applyEvent(e archive.Event) watchModel {
	switch ev := e.(type) {
	case archive.CatalogSynced:
		m.catalog = ev.String()
	case archive.FetchStarted:
		m.current = ev.String()
		m.attempt = ""
		m.transfer = ""
		m.percent = 0
	case archive.AttemptStarted:
		m.current = fmt.Sprintf("[%d/%d] %s", ev.Index, ev.Total, ev.Title)
		m.attempt = fmt.Sprintf("%s  attempt %d/%d  %s  timeout %s", ev.VideoID, ev.Attempt, ev.MaxAttempts, ev.Duration, ev.Timeout)
		m.transfer = ""
		m.percent = 0
	case archive.TransferProgress:
		m.percent = ev.Sample.Fraction()
		m.transfer = ev.String()
	case archive.RunCompleted:
		r := ev.Result
		m.result = &r
		m.current = ""
	default:
		m.log = append(m.log, e.String())
		if len(m.log) > watchLogLines {
			m.log = m.log[len(m.log)-watchLogLines:]
		}
	}
	return m
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(watchTitleStyle.Render("creator-archiver"))
	b.WriteString("\n")
	if m.catalog != "" {
		b.WriteString(watchMutedStyle.Render(m.catalog))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(watchErrorStyle.Render("run failed: " + m.err.Error()))
		b.WriteString("\n")
	case m.done && m.result != nil:
		style := watchOKStyle
		if m.result.Exhausted > 0 || m.result.Aborted {
			style = watchErrorStyle
		}
		b.WriteString(style.Render(archive.RunCompleted{Result: *m.result}.String()))
		b.WriteString("\n")
	case m.current != "":
		b.WriteString(m.spinner.View() + " " + m.current + "\n")
		if m.attempt != "" {
			b.WriteString("  " + watchMutedStyle.Render(m.attempt) + "\n")
		}
		b.WriteString("  " + m.bar.ViewAs(m.percent) + "\n")
		if m.transfer != "" {
			b.WriteString("  " + watchMutedStyle.Render(m.transfer) + "\n")
		}
	default:
		b.WriteString(m.spinner.View() + " preparing catalog...\n")
	}

	if len(m.log) > 0 {
		b.WriteString("\n")
		for _, line := range m.log {
			b.WriteString(watchMutedStyle.Render(line) + "\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.done:
	case m.stopping:
		b.WriteString(watchMutedStyle.Render("stopping: the current video is kept pending for the next run"))
		b.WriteString("\n")
	default:
		b.WriteString(watchMutedStyle.Render("q / ctrl+c: stop"))
		b.WriteString("\n")
	}
	return b.String()
}
