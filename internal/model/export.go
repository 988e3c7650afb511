package model

import "time"

// QuestionExport is the top-level JSON structure for question export.
type QuestionExport struct {
	Exam       Exam       `json:"exam"`
	Course     Course     `json:"course"`
	ExportedAt time.Time  `json:"exported_at"`
	Count      int        `json:"count"`
	Questions  []Question `json:"questions"`
}
