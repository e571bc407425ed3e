package domain

// MergeRecord describes a merge before it is committed.
type MergeRecord struct {
	PrimaryID   string
	AbsorbedIDs []string
	Result      *Application
}

// MergeResult is returned to the caller after the merge batch commits.
type MergeResult struct {
	MergedApplicationID   string       `json:"mergedApplicationId"`
	DeletedApplicationIDs []string     `json:"deletedApplicationIds"`
	MergedCount           int          `json:"mergedCount"`
	Application           *Application `json:"application"`
}

// WriteBatch is applied atomically by the application store.
//
// A non-nil Expect makes the batch conditional. It holds the revision each
// touched record had when it was read: a put or delete listed there only
// applies while the stored revision still matches, and a put missing from it
// must not find an existing record. Deletes of a conditional batch must be
// listed. Any mismatch rejects the whole batch with ErrRevisionConflict.
type WriteBatch struct {
	Puts    []*Application
	Deletes []string
	Expect  map[string]int64
}

// ExpectRevisions records the current revision of apps as the batch precondition.
func (b *WriteBatch) ExpectRevisions(apps ...*Application) {
	if b.Expect == nil {
		b.Expect = make(map[string]int64, len(apps))
	}
	for _, a := range apps {
		b.Expect[a.ID] = a.Revision
	}
}

func (b *WriteBatch) Empty() bool {
	return b == nil || (len(b.Puts) == 0 && len(b.Deletes) == 0)
}
