package models

// JobState is the status of an asynchronous text-detection job as reported
// by the job service.
type JobState string

const (
	JobInProgress JobState = "IN_PROGRESS"
	JobSucceeded  JobState = "SUCCEEDED"
	JobFailed     JobState = "FAILED"
)

// JobStatus is the answer to a single poll.
type JobStatus struct {
	State     JobState
	RawResult string // JSON encoded RawResult, set when State is JobSucceeded
	ResultRef string // object holding RawResult, replaces RawResult when set
	Reason    string // set when State is JobFailed
}

// Fields returns the payload fields a succeeded job contributes.
func (s JobStatus) Fields() Payload {
	if s.ResultRef != "" {
		return Payload{KeyRawResultRef: s.ResultRef}
	}
	return Payload{KeyRawResult: s.RawResult}
}

// Block types produced by text-detection engines. Consolidation uses LINE
// blocks and falls back to WORD blocks for pages without lines.
const (
	BlockPage = "PAGE"
	BlockLine = "LINE"
	BlockWord = "WORD"
)

// RawResult is the wire schema of a finished text-detection job.
type RawResult struct {
	Pages []RawPage `json:"pages"`
}

// RawPage holds the blocks detected on one page. Page numbers start at 1.
type RawPage struct {
	Page   int        `json:"page"`
	Blocks []RawBlock `json:"blocks"`
}

// RawBlock is one detected fragment. Confidence is a percentage when present.
type RawBlock struct {
	Type       string   `json:"type"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}
