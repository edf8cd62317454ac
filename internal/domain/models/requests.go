package models

// Requests for HTTP endpoints. Defined in domain for reuse by handlers and tests.

type ReportRequest struct {
	RunID string `query:"run_id" json:"run_id" validate:"required"`
	Start int    `query:"start" json:"start" default:"19900101" validate:"gte=19900101"`
	End   int    `query:"end" json:"end" default:"21000101" validate:"gtefield=Start"`
}

type ReportStreamRequest struct {
	RunID string `query:"run_id" json:"run_id" validate:"required"`
	Start int    `query:"start" json:"start" default:"19900101" validate:"gte=19900101"`
	End   int    `query:"end" json:"end" default:"21000101" validate:"gtefield=Start"`
	Chunk int    `query:"chunk" json:"chunk" default:"500" validate:"gte=1,lte=5000"`
}
