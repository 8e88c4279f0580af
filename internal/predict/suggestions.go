package predict

import (
	"fmt"

	"github.com/continuity-labs/cce/internal/graph"
)

// suggestionCandidates is how many predictions feed the suggestion groups.
const suggestionCandidates = 10

// Suggestions groups actionable context for the current activity. Any group
// may be empty independently of the others.
type Suggestions struct {
	Files       []string `json:"files"`
	Apps        []string `json:"apps"`
	NextActions []string `json:"next_actions"`
}

// GetSuggestions derives file, app, and next-action suggestions from the
// top predictions for the description.
func (p *Predictor) GetSuggestions(description string) (*Suggestions, error) {
	predictions, err := p.PredictContext(description, suggestionCandidates)
	if err != nil {
		return nil, err
	}

	s := &Suggestions{
		Files:       []string{},
		Apps:        []string{},
		NextActions: []string{},
	}

	seenFiles := map[string]bool{}
	seenApps := map[string]bool{}
	for _, pred := range predictions {
		if p.allow != nil && !p.allow(pred.AppName, pred.FilePath) {
			continue
		}
		if pred.FilePath != "" && !seenFiles[pred.FilePath] {
			seenFiles[pred.FilePath] = true
			s.Files = append(s.Files, pred.FilePath)
		}
		if pred.AppName != "" && !seenApps[pred.AppName] {
			seenApps[pred.AppName] = true
			s.Apps = append(s.Apps, pred.AppName)
		}
	}

	// Next actions come from what historically followed the top predictions
	// in the temporal graph.
	if p.graph != nil {
		seenActions := map[string]bool{}
		for _, pred := range predictions {
			if len(s.NextActions) >= 5 {
				break
			}
			related, err := p.graph.Related(pred.ActivityID, 1)
			if err != nil {
				continue
			}
			for _, rel := range related {
				if len(rel.RelationPath) == 0 || rel.RelationPath[0] != graph.RelFollows {
					continue
				}
				next, err := p.db.GetActivity(rel.ActivityID)
				if err != nil {
					continue
				}
				if p.allow != nil && !p.allow(next.AppName, next.FilePath) {
					continue
				}
				action := describeActivity(next.AppName, next.WindowTitle)
				if action == "" || seenActions[action] {
					continue
				}
				seenActions[action] = true
				s.NextActions = append(s.NextActions, action)
				if len(s.NextActions) >= 5 {
					break
				}
			}
		}
	}

	return s, nil
}

func describeActivity(app, title string) string {
	switch {
	case app != "" && title != "":
		return fmt.Sprintf("switch to %s: %s", app, title)
	case app != "":
		return fmt.Sprintf("switch to %s", app)
	case title != "":
		return title
	default:
		return ""
	}
}
