package progress

// Meta is free-form per-attempt detail (verdict ids, quiz answers, ...).
type Meta map[string]any

// Record is the persisted state of one stage. Nil pointers mean "not yet".
// Timestamps are epoch milliseconds.
type Record struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	StartedAt   *int64 `json:"startedAt"`
	CompletedAt *int64 `json:"completedAt"`
	DurationSec *int64 `json:"durationSec"`
	Score       *int   `json:"score"`
	Correct     *int   `json:"correct"`
	Total       *int   `json:"total"`
	Passed      bool   `json:"passed"`
	Meta        Meta   `json:"meta,omitempty"`
}

func (r Record) Completed() bool { return r.CompletedAt != nil }

// Completion is what a finished attempt reports for its stage.
type Completion struct {
	Score   int  `json:"score"`
	Correct *int `json:"correct,omitempty"`
	Total   *int `json:"total,omitempty"`
	Passed  bool `json:"passed"`
	Meta    Meta `json:"meta,omitempty"`
}

func defaults() []Record {
	out := make([]Record, len(canonical))
	for i, s := range canonical {
		out[i] = Record{ID: s.ID, Label: s.Label}
	}
	return out
}

// reconcile maps stored records onto the canonical stage list: unknown
// stages are dropped, missing ones get empty defaults, labels follow the
// current catalog.
func reconcile(stored []Record) []Record {
	out := defaults()
	for _, r := range stored {
		i, ok := stageIndex(r.ID)
		if !ok {
			continue
		}
		r.Label = canonical[i].Label
		out[i] = r
	}
	return out
}

func clone(rs []Record) []Record {
	out := make([]Record, len(rs))
	for i, r := range rs {
		out[i] = r
		out[i].StartedAt = copyPtr(r.StartedAt)
		out[i].CompletedAt = copyPtr(r.CompletedAt)
		out[i].DurationSec = copyPtr(r.DurationSec)
		out[i].Score = copyPtr(r.Score)
		out[i].Correct = copyPtr(r.Correct)
		out[i].Total = copyPtr(r.Total)
		if r.Meta != nil {
			out[i].Meta = make(Meta, len(r.Meta))
			for k, v := range r.Meta {
				out[i].Meta[k] = v
			}
		}
	}
	return out
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func ptr[T any](v T) *T { return &v }
