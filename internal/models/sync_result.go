package models

// SyncResult is the outcome of a single replay attempt.
type SyncResult struct {
	Success bool   `json:"success"`
	ItemID  string `json:"itemId"`
	Error   string `json:"error,omitempty"`
}

// SyncSummary aggregates one sync pass.
type SyncSummary struct {
	Total      int          `json:"total"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Results    []SyncResult `json:"results"`
}

// Add records one result in the summary.
func (s *SyncSummary) Add(r SyncResult) {
	s.Total++
	if r.Success {
		s.Successful++
	} else {
		s.Failed++
	}
	s.Results = append(s.Results, r)
}

// StatusCounts is a display snapshot of the queue.
type StatusCounts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// SyncCompleteData is the payload broadcast after a background pass.
type SyncCompleteData struct {
	SuccessCount int `json:"successCount"`
	FailCount    int `json:"failCount"`
	Total        int `json:"total"`
}

// SyncCompleteMessage is posted to every open client after a pass.
type SyncCompleteMessage struct {
	Type string           `json:"type"`
	Data SyncCompleteData `json:"data"`
}

// NewSyncCompleteMessage builds the broadcast message for a summary.
func NewSyncCompleteMessage(s SyncSummary) SyncCompleteMessage {
	return SyncCompleteMessage{
		Type: MessageSyncComplete,
		Data: SyncCompleteData{
			SuccessCount: s.Successful,
			FailCount:    s.Failed,
			Total:        s.Total,
		},
	}
}
