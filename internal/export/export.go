package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gyankosh/internal/chat"
)

type Exporter struct {
	dir string
	now func() time.Time
}

// New returns an exporter writing into dir, or the working directory when dir
// is empty.
func New(dir string) (*Exporter, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve cwd: %w", err)
		}
		dir = cwd
	}
	return &Exporter{dir: dir, now: time.Now}, nil
}

func (e *Exporter) Export(log []chat.Message) (string, error) {
	if len(log) == 0 {
		return "", fmt.Errorf("nothing to export")
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	exportedAt := e.now().UTC()
	path := filepath.Join(e.dir, "gyankosh-"+exportedAt.Format("20060102-150405")+".md")
	md := BuildDocument(log, exportedAt)
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

func BuildDocument(log []chat.Message, exportedAt time.Time) string {
	var b strings.Builder
	b.WriteString("# metaGyankosh conversation\n\n")
	b.WriteString("- Exported: " + exportedAt.Format(time.RFC3339) + "\n")
	b.WriteString(fmt.Sprintf("- Messages: %d\n", len(log)))
	if len(log) > 0 {
		b.WriteString("- Started: " + log[0].CreatedAt.UTC().Format(time.RFC3339) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(BuildTranscriptMarkdown(log))
	return b.String()
}

// BuildTranscriptMarkdown renders the log as "## You" / "## Assistant"
// sections in log order.
func BuildTranscriptMarkdown(log []chat.Message) string {
	var b strings.Builder
	for _, m := range log {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case chat.RoleUser:
			b.WriteString("## You\n\n")
		default:
			b.WriteString("## Assistant\n\n")
		}
		b.WriteString(content + "\n\n")
	}
	return strings.TrimSpace(b.String()) + "\n"
}
