package core

import "sync"

// File is the record returned for every stored file.
type File struct {
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	Key      string `json:"key,omitempty"`
}

// join tracks the file pipelines of one multipart request. The number of
// files is not known until the body has been read, so the barrier opens only
// once parsing finished, at least one file was seen and no pipeline is
// pending.
type join struct {
	mu      sync.Mutex
	pending int
	seen    int
	closed  bool
	fired   bool
	records []File
}

// add registers a new pipeline.
func (j *join) add() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.pending++
	j.seen++
}

// done finishes a pipeline. rec is nil when the pipeline failed. ready is
// true for exactly one call of done or close, which receives the records.
func (j *join) done(rec *File) (records []File, ready bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.pending == 0 {
		panic("join: done called without a matching add")
	}

	j.pending--
	if rec != nil {
		j.records = append(j.records, *rec)
	}
	return j.fire()
}

// close marks the end of parsing.
func (j *join) close() (records []File, ready bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.closed = true
	return j.fire()
}

// empty reports whether no pipeline was ever added.
func (j *join) empty() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.seen == 0
}

func (j *join) fire() ([]File, bool) {
	if j.fired || !j.closed || j.pending > 0 || j.seen == 0 {
		return nil, false
	}
	j.fired = true
	return j.records, true
}
