package pipeline

import "github.com/crunchyericford/set-user/internal/model"

// Classify tags raw statement text with its command class. Matching is
// keyword-based and case-insensitive; quoted strings and identifiers are
// ignored, so COPY t TO '/tmp/program.txt' is not a program invocation.
func Classify(text string) model.CommandClass {
	words := Keywords(text)
	if len(words) == 0 {
		return model.ClassOther
	}

	if len(words) >= 2 && words[0] == "ALTER" && words[1] == "SYSTEM" {
		return model.ClassAlterSystem
	}

	if words[0] == "COPY" {
		for _, w := range words[1:] {
			if w == "PROGRAM" {
				return model.ClassCopyProgram
			}
		}
	}

	return model.ClassOther
}
