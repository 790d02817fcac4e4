package decision

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/polish-dev/polish/internal/output"
)

// CLIPrompter implements Prompter over a line-based reader, normally
// stdin. A single long-lived goroutine owns the reader; prompts receive
// lines from it through a channel, so abandoning a prompt on timeout
// never leaves a second reader behind. A line typed after a prompt
// expired stays buffered and answers the next prompt.
type CLIPrompter struct {
	In io.Reader
	UI *output.UI

	once    sync.Once
	lines   chan string
	readErr error
}

// NewCLIPrompter returns a prompter reading from stdin.
func NewCLIPrompter(ui *output.UI) *CLIPrompter {
	return &CLIPrompter{In: os.Stdin, UI: ui}
}

// CanPrompt reports whether stdin is a terminal. Interactive mode
// without a terminal degrades to the default action instead of reading
// from a pipe.
func CanPrompt() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// FileDecision renders the report and reads one decision. It returns
// ctx's error as soon as ctx is done; the underlying reader keeps
// running so the next prompt can be answered.
func (p *CLIPrompter) FileDecision(ctx context.Context, report *Report) (Choice, error) {
	p.render(report)

	for {
		fmt.Fprint(p.UI.Out, "[a]pply all  [s]elect <n...>  [p]review  [k]eep unchanged  [q]uit batch > ")
		line, err := p.readLine(ctx)
		if err != nil {
			return Choice{}, err
		}

		// Only the verb is case-insensitive; selection tokens may be
		// case-sensitive suggestion IDs.
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "a", "apply":
			return Choice{Action: ActionApply}, nil
		case "s", "select":
			ids := resolveSelection(report, fields[1:])
			if len(ids) == 0 {
				p.UI.Warning("select needs suggestion numbers or ids, e.g. 's 1 3'")
				continue
			}
			return Choice{Action: ActionSelect, IDs: ids}, nil
		case "p", "preview":
			return Choice{Action: ActionPreview}, nil
		case "k", "keep", "skip":
			return Choice{Action: ActionSkip}, nil
		case "q", "quit":
			return Choice{Action: ActionQuit}, nil
		default:
			p.UI.Warning("unrecognized answer %q", fields[0])
		}
	}
}

// RunMode asks once which mode to use for the whole run.
func (p *CLIPrompter) RunMode() (Mode, bool, error) {
	for {
		fmt.Fprint(p.UI.Out, "Mode for this run? [i]nteractive  [a]uto  [p]review  [s]kip > ")
		line, err := p.readLine(context.Background())
		if err != nil {
			return "", false, err
		}

		var mode Mode
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "i", "interactive":
			mode = ModeInteractive
		case "a", "auto":
			mode = ModeAuto
		case "p", "preview":
			mode = ModePreview
		case "s", "skip":
			mode = ModeSkip
		default:
			p.UI.Warning("unrecognized mode")
			continue
		}

		fmt.Fprint(p.UI.Out, "Remember this choice? [y/N] > ")
		answer, err := p.readLine(context.Background())
		if err != nil {
			return "", false, err
		}
		remember := strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y")
		return mode, remember, nil
	}
}

func (p *CLIPrompter) render(report *Report) {
	fmt.Fprintln(p.UI.Out)
	p.UI.Info("%s: %d suggestion(s)", output.Cyan(report.File), len(report.Suggestions))

	table := p.UI.Table([]string{"#", "Severity", "Category", "Lines", "Analyzer", "Rationale"})
	for i, s := range report.Suggestions {
		_ = table.Append([]string{
			strconv.Itoa(i + 1),
			output.SeverityColor(string(s.Severity)),
			string(s.Category),
			s.Lines.String(),
			s.Analyzer,
			s.Rationale,
		})
	}
	_ = table.Render()

	for _, res := range report.Results {
		if res.Diagnostic != "" {
			p.UI.Warning("%s: %s", res.Analyzer, res.Diagnostic)
		}
	}
}

// start launches the goroutine that owns the input stream. On a read
// error it records the error and closes the channel; every later
// readLine reports that error.
func (p *CLIPrompter) start() {
	p.once.Do(func() {
		p.lines = make(chan string)
		go func() {
			r := bufio.NewReader(p.In)
			for {
				line, err := r.ReadString('\n')
				if err != nil && line == "" {
					p.readErr = err
					close(p.lines)
					return
				}
				p.lines <- strings.TrimSpace(line)
				if err != nil {
					p.readErr = err
					close(p.lines)
					return
				}
			}
		}()
	})
}

func (p *CLIPrompter) readLine(ctx context.Context) (string, error) {
	p.start()
	select {
	case line, ok := <-p.lines:
		if !ok {
			return "", p.readErr
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// resolveSelection maps operator tokens to suggestion IDs. Tokens may
// be 1-based table indexes or full suggestion IDs.
func resolveSelection(report *Report, tokens []string) []string {
	var ids []string
	for _, tok := range tokens {
		if n, err := strconv.Atoi(tok); err == nil {
			if n >= 1 && n <= len(report.Suggestions) {
				ids = append(ids, report.Suggestions[n-1].ID)
			}
			continue
		}
		ids = append(ids, tok)
	}
	return ids
}
