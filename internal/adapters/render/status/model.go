package status

import (
	"errors"
	"io"

	"github.com/bnema/chimenet/internal/application"
	"github.com/bnema/chimenet/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type renderReadyMsg struct{}

type model struct {
	view   func(styles) string
	styles styles
	output string
}

func newModel(view func(styles) string) model {
	return model{
		view:   view,
		styles: newStyles(),
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		return renderReadyMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case renderReadyMsg:
		m.output = m.view(m.styles)
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m model) View() string {
	return m.output
}

// RenderChimes draws the chimes known to the discovery registry.
func RenderChimes(records []domain.RemoteChimeRecord, opts RenderOptions) (string, error) {
	return run(func(s styles) string { return renderChimes(records, opts, s) })
}

// RenderNode draws the local node: active state, override, conditions and
// pending rings.
func RenderNode(snapshot application.NodeSnapshot, opts RenderOptions) (string, error) {
	return run(func(s styles) string { return renderNode(snapshot, opts, s) })
}

func run(view func(styles) string) (string, error) {
	p := tea.NewProgram(
		newModel(view),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(model)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}
