package models

// Requests for the detection HTTP endpoints.

type ResultsRequest struct {
	Filename string `param:"filename" json:"filename" validate:"required,endswith=.csv,excludesall=/"`
	Rows     int    `query:"rows" json:"rows" default:"500" validate:"gte=0,lte=100000"`
}

type ArtifactRequest struct {
	Filename string `param:"filename" json:"filename" validate:"required,excludesall=/"`
}

// ResultsView is the transport shape of a Result with up to Rows table rows.
type ResultsView struct {
	Result
	Columns   []string            `json:"columns"`
	Rows      []map[string]string `json:"rows"`
	Truncated bool                `json:"truncated"`
}
