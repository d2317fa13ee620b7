// package formatter renders recommendation batches to various formats (JSON, CSV, Markdown, plain text, terminal)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/aidj/internal/models"
)

// Palette is a simple stylesheet built with named [lipgloss.Style] fields.
type Palette struct {
	title lipgloss.Style
	track lipgloss.Style
	score lipgloss.Style
	note  lipgloss.Style
	warn  lipgloss.Style
}

// NewPalette builds a palette from foreground color hex strings.
func NewPalette(title, track, score, note, warn string) *Palette {
	return &Palette{
		title: newBold(title).MarginBottom(1),
		track: newBold(track),
		score: newStyle(score),
		note:  newEm(note),
		warn:  newStyle(warn),
	}
}

// DefaultPalette is the terminal stylesheet used by the CLI.
func DefaultPalette() *Palette {
	return NewPalette("#7D56F4", "#04B575", "#FFA500", "#626262", "#FF0000")
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}

func newEm(fg string) lipgloss.Style {
	return newStyle(fg).Italic(true)
}

// ToJSON renders a batch as indented JSON.
func ToJSON(batch *models.RecommendationBatch) ([]byte, error) {
	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}
	return data, nil
}

// ToCSV renders a batch as CSV with columns: Position, Title, Artist, Album, Combined, Audio, Relevance, Duplicate
func ToCSV(batch *models.RecommendationBatch) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Title", "Artist", "Album", "Combined", "Audio", "Relevance", "Duplicate"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range batch.Tracks {
		record := []string{
			strconv.Itoa(track.Position),
			track.Title,
			track.Artist,
			track.Album,
			strconv.FormatFloat(track.CombinedScore, 'f', 2, 64),
			strconv.FormatFloat(track.AudioScore, 'f', 2, 64),
			strconv.Itoa(track.LyricsRelevance),
			strconv.FormatBool(track.Duplicate),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ToMarkdown renders a batch as a Markdown document with per-track scores
// and explanations.
func ToMarkdown(batch *models.RecommendationBatch) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", batch.IntroText))
	buf.WriteString(fmt.Sprintf("**Request**: %s\n", batch.SourceRequest))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", batch.Count()))

	buf.WriteString("## Tracks\n\n")
	for _, track := range batch.Tracks {
		duplicate := ""
		if track.Duplicate {
			duplicate = " (recently recommended)"
		}
		buf.WriteString(fmt.Sprintf("%d. **%s** - %s [%.2f]%s\n",
			track.Position, track.Artist, track.Title, track.CombinedScore, duplicate))
		if track.Explanation != "" {
			buf.WriteString(fmt.Sprintf("   > %s\n", track.Explanation))
		}
		if len(track.HighlightedTerms) > 0 {
			buf.WriteString(fmt.Sprintf("   Highlights: %s\n", strings.Join(track.HighlightedTerms, ", ")))
		}
	}

	return buf.Bytes(), nil
}

// ToText renders a batch as plain text.
func ToText(batch *models.RecommendationBatch) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%s\n", batch.IntroText))
	buf.WriteString(fmt.Sprintf("Request: %s\n", batch.SourceRequest))
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", batch.Count()))

	for _, track := range batch.Tracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", track.Position, track.Artist, track.Title))
	}

	return buf.Bytes(), nil
}

// Render produces the lipgloss-styled terminal view of a batch.
func (p *Palette) Render(batch *models.RecommendationBatch) string {
	var buf strings.Builder

	buf.WriteString(p.title.Render(batch.IntroText))
	buf.WriteString("\n")

	for _, track := range batch.Tracks {
		line := fmt.Sprintf("%2d. %s", track.Position,
			p.track.Render(fmt.Sprintf("%s - %s", track.Artist, track.Title)))
		line += " " + p.score.Render(fmt.Sprintf("[%.1f]", track.CombinedScore))
		if track.Duplicate {
			line += " " + p.warn.Render("(repeat)")
		}
		buf.WriteString(line + "\n")

		if track.Explanation != "" {
			buf.WriteString("    " + p.note.Render(track.Explanation) + "\n")
		}
	}

	return buf.String()
}

// WriteExport writes a batch to a file in the named format (json, csv, md, txt).
func WriteExport(batch *models.RecommendationBatch, format, filepath string) (string, error) {
	var (
		data []byte
		err  error
		ext  string
	)

	switch format {
	case "json":
		data, err = ToJSON(batch)
		ext = "json"
	case "csv":
		data, err = ToCSV(batch)
		ext = "csv"
	case "md", "markdown":
		data, err = ToMarkdown(batch)
		ext = "md"
	case "txt", "text":
		data, err = ToText(batch)
		ext = "txt"
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", format, err)
	}

	if filepath == "" {
		filepath = fmt.Sprintf("recommendations_%s.%s", batch.Timestamp.Format("20060102_150405"), ext)
	}
	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return filepath, nil
}
