package parser

import (
	"fmt"

	"twee-kit/ifid"
	"twee-kit/story"
)

// ValidationIssue è un singolo problema trovato nel file
type ValidationIssue struct {
	Passage string `json:"passage,omitempty"`
	Message string `json:"message"`
}

// ValidationResult raccoglie errori e warning senza interrompere l'analisi
type ValidationResult struct {
	Valid        bool              `json:"valid"`
	PassageCount int               `json:"passage_count"`
	Errors       []ValidationIssue `json:"errors"`
	Warnings     []ValidationIssue `json:"warnings"`
}

func (vr *ValidationResult) addError(passage, msg string) {
	vr.Errors = append(vr.Errors, ValidationIssue{Passage: passage, Message: msg})
	vr.Valid = false
}

func (vr *ValidationResult) addWarning(passage, msg string) {
	vr.Warnings = append(vr.Warnings, ValidationIssue{Passage: passage, Message: msg})
}

// Validate controlla il file .twee
func (tp *TweeParser) Validate() *ValidationResult {
	s, diags, err := tp.Parse()
	if err != nil {
		result := &ValidationResult{Errors: []ValidationIssue{}, Warnings: []ValidationIssue{}}
		result.addError("", err.Error())
		return result
	}
	return ValidateStory(s, diags)
}

// ValidateStory controlla una storia appena parsata (lista piatta)
func ValidateStory(s *story.Story, diags story.Diagnostics) *ValidationResult {
	result := &ValidationResult{
		Valid:        true,
		PassageCount: s.Len(),
		Errors:       []ValidationIssue{},
		Warnings:     []ValidationIssue{},
	}

	for _, d := range diags {
		result.addWarning("", d.Message)
	}

	seen := make(map[string]bool)
	hasStoryData := false

	for i, p := range s.Passages() {
		if p.Name == "" {
			result.addError("", fmt.Sprintf("passaggio %d senza nome", i+1))
			continue
		}
		if seen[p.Name] {
			result.addWarning(p.Name, "nome duplicato: il passaggio successivo sostituisce il precedente")
		}
		seen[p.Name] = true

		if p.Name == story.StoryDataPassage {
			hasStoryData = true
			probe := story.New()
			res, err := probe.AddPassage(p)
			if err != nil {
				result.addError(p.Name, err.Error())
				continue
			}
			for _, d := range res.Diagnostics {
				result.addWarning(p.Name, d.Message)
			}
			if !ifid.IsValid(probe.IFID) {
				result.addWarning(p.Name, "IFID mancante o non valido, ne verrà generato uno nuovo")
			}
			if probe.Start != "" && !containsPassage(s, probe.Start) {
				result.addWarning(p.Name, fmt.Sprintf("il passaggio iniziale '%s' non esiste", probe.Start))
			}
		}
	}

	if !hasStoryData {
		result.addWarning("", "passaggio StoryData mancante")
	}
	if s.Len() == 0 {
		result.addWarning("", "nessun passaggio trovato")
	}

	return result
}

func containsPassage(s *story.Story, name string) bool {
	_, err := s.GetPassageByName(name)
	return err == nil
}
