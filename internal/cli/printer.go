package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"pyinstaller-studio/internal/domain"
)

// Theme holds the color scheme for packaging output.
type Theme struct {
	Info    lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Success lipgloss.Color
	Debug   lipgloss.Color
}

var defaultTheme = Theme{
	Info:    lipgloss.Color("#5FAFD7"),
	Warning: lipgloss.Color("#FFAF00"),
	Error:   lipgloss.Color("#FF005F"),
	Success: lipgloss.Color("#00D787"),
	Debug:   lipgloss.Color("#6C6C6C"),
}

// printer writes tagged lines; it is safe for use from the job goroutine and
// the command goroutine at once.
type printer struct {
	mu     sync.Mutex
	out    io.Writer
	styles map[domain.LogTag]lipgloss.Style
	plain  lipgloss.Style
}

func newPrinter(out io.Writer, theme Theme) *printer {
	r := lipgloss.NewRenderer(out)
	return &printer{
		out: out,
		styles: map[domain.LogTag]lipgloss.Style{
			domain.LogTagInfo:    r.NewStyle().Foreground(theme.Info),
			domain.LogTagWarning: r.NewStyle().Foreground(theme.Warning),
			domain.LogTagError:   r.NewStyle().Foreground(theme.Error).Bold(true),
			domain.LogTagSuccess: r.NewStyle().Foreground(theme.Success).Bold(true),
			domain.LogTagDebug:   r.NewStyle().Foreground(theme.Debug),
		},
		plain: r.NewStyle(),
	}
}

// Line prints one output line colored by its keyword tag.
func (p *printer) Line(line string) {
	p.print(domain.ClassifyLine(line), line)
}

// Tagged prints a formatted message with an explicit tag.
func (p *printer) Tagged(tag domain.LogTag, format string, args ...any) {
	p.print(tag, fmt.Sprintf(format, args...))
}

func (p *printer) print(tag domain.LogTag, text string) {
	style, ok := p.styles[tag]
	if !ok {
		style = p.plain
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, style.Render(text))
}
