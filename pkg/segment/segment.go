// Package segment turns per-frame annotations into task prompts and splits
// an episode wherever the prompt changes.
package segment

import (
	"fmt"
	"strings"

	"github.com/siqueiraa/labelflow/pkg/episode"
)

// Line is one line of a prompt. With Names set, each key is rendered as
// "<name>: <value>" after the label ("movement left: up right: down");
// otherwise the values follow "<label>: ".
type Line struct {
	Label string
	Keys  []string
	Names []string
}

// DefaultLines is the prompt layout used for the dual-arm preset.
func DefaultLines() []Line {
	return []Line{
		{Label: "description", Keys: []string{"scene_description"}},
		{Label: "subtask", Keys: []string{"subtask"}},
		{Label: "movement", Keys: []string{"mov_summary_left", "mov_summary_right"}, Names: []string{"left", "right"}},
	}
}

// words dropped from prompts
var fillers = map[string]bool{"the": true, "a": true, "is": true, "are": true}

// TaskPrompt renders the prompt for one frame. Every key must be present.
func TaskPrompt(task string, ann episode.Annotation, lines []Line) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "task: %s\n", task)
	for _, l := range lines {
		if len(l.Names) > 0 && len(l.Names) != len(l.Keys) {
			return "", fmt.Errorf("line %q: %d names for %d keys", l.Label, len(l.Names), len(l.Keys))
		}
		b.WriteString(l.Label)
		for i, key := range l.Keys {
			v, ok := ann[key]
			if !ok {
				return "", &episode.KeyError{Source: episode.SourceAnnotation, Key: key}
			}
			switch {
			case len(l.Names) > 0:
				fmt.Fprintf(&b, " %s: %v", l.Names[i], v)
			case i == 0:
				fmt.Fprintf(&b, ": %v", v)
			default:
				fmt.Fprintf(&b, " %v", v)
			}
		}
		b.WriteByte('\n')
	}
	return clean(b.String()), nil
}

// clean drops filler words and periods line by line.
func clean(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		words := strings.Fields(strings.ReplaceAll(line, ".", ""))
		kept := words[:0]
		for _, w := range words {
			if !fillers[w] {
				kept = append(kept, w)
			}
		}
		lines[i] = strings.Join(kept, " ")
	}
	return strings.Join(lines, "\n")
}

// Segment is a run of frames [Start, End) sharing one prompt.
type Segment struct {
	Start  int
	End    int
	Prompt string
}

func (s Segment) Len() int { return s.End - s.Start }

// Split groups consecutive equal prompts.
func Split(prompts []string) []Segment {
	var out []Segment
	for i, p := range prompts {
		if n := len(out); n > 0 && out[n-1].Prompt == p {
			out[n-1].End = i + 1
			continue
		}
		out = append(out, Segment{Start: i, End: i + 1, Prompt: p})
	}
	return out
}

// Episode renders every frame's prompt and splits the episode.
func Episode(task string, records []episode.Annotation, lines []Line) ([]Segment, error) {
	prompts := make([]string, len(records))
	for i, rec := range records {
		p, err := TaskPrompt(task, rec, lines)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		prompts[i] = p
	}
	return Split(prompts), nil
}
