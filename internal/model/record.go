package model

// TransferStatus is the outcome of one entity's transfer attempt.
type TransferStatus string

const (
	StatusCreated       TransferStatus = "created"
	StatusAlreadyExists TransferStatus = "already-exists"
	StatusFailed        TransferStatus = "failed"
)

// TransferRecord is the outcome of transferring a single source entity.
type TransferRecord struct {
	EntityType EntityType
	SourceID   string
	Name       string
	Status     TransferStatus
	TargetID   string
	Err        string
}

// Summary counts outcomes for one entity type's phase.
type Summary struct {
	EntityType    EntityType
	Created       int
	AlreadyExists int
	Failed        int
}

// Total returns the number of records the phase processed.
func (s Summary) Total() int {
	return s.Created + s.AlreadyExists + s.Failed
}

// Summarize tallies records into per-type summaries, in first-seen order.
func Summarize(records []TransferRecord) []Summary {
	byType := make(map[EntityType]*Summary)
	var order []EntityType
	for _, rec := range records {
		s, ok := byType[rec.EntityType]
		if !ok {
			s = &Summary{EntityType: rec.EntityType}
			byType[rec.EntityType] = s
			order = append(order, rec.EntityType)
		}
		switch rec.Status {
		case StatusCreated:
			s.Created++
		case StatusAlreadyExists:
			s.AlreadyExists++
		case StatusFailed:
			s.Failed++
		}
	}
	out := make([]Summary, 0, len(order))
	for _, t := range order {
		out = append(out, *byType[t])
	}
	return out
}
