package domain

// BulkAction is the operation applied by a bulk request
type BulkAction string

const (
	BulkActionDelete           BulkAction = "delete"
	BulkActionUpdateFromSource BulkAction = "update_from_source"
)

// IsValid checks if the bulk action is supported
func (a BulkAction) IsValid() bool {
	return a == BulkActionDelete || a == BulkActionUpdateFromSource
}

// RefreshOutcome classifies a single refresh-from-source attempt
type RefreshOutcome string

const (
	RefreshUpdated   RefreshOutcome = "success"
	RefreshFailed    RefreshOutcome = "failed"
	RefreshNoChanges RefreshOutcome = "noChanges"
)

// BulkItemError describes why one item of a bulk request failed
type BulkItemError struct {
	ProductID string `json:"productId"`
	Error     string `json:"error"`
}

// BulkResult is the per-item accounting of a bulk request.
// Success + Failed + NoChanges always equals the number of requested ids.
type BulkResult struct {
	Success   int             `json:"success"`
	Failed    int             `json:"failed"`
	NoChanges int             `json:"noChanges"`
	Errors    []BulkItemError `json:"errors"`
}

// Total returns the number of items accounted for
func (r *BulkResult) Total() int {
	return r.Success + r.Failed + r.NoChanges
}
