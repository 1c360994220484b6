// Package remediate adds missing required tags to non-compliant resources.
//
// The executor writes the resource's full tag set back: the current tags
// unioned with every missing key set to an empty value. Existing values are
// never removed or overwritten, and a resource that already carries every
// required key is not written at all, so repeated runs are no-ops.
//
// Known hazard: the write-back is not conditional. If another actor updates
// the same resource's tags between the inventory read and the write, that
// update is lost (last writer wins). ARM's tags API offers no ETag
// precondition for this call.
package remediate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kjourdan1/azaudit/internal/inventory"
	"github.com/kjourdan1/azaudit/internal/policy"
)

// TagWriter replaces the full tag set of a resource.
type TagWriter interface {
	UpdateTags(ctx context.Context, resourceID string, tags map[string]string) error
}

// Errors a TagWriter wraps so failures can be classified.
var (
	ErrAuth      = errors.New("not authorized to update tags")
	ErrThrottled = errors.New("tag update throttled")
	ErrNotFound  = errors.New("resource not found")
)

// ErrorKind classifies a failed write-back.
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindThrottled ErrorKind = "throttled"
	KindNotFound  ErrorKind = "not_found"
	KindTimeout   ErrorKind = "timeout"
	KindOther     ErrorKind = "other"
)

// Classify maps a write-back error to its kind. nil yields "".
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrThrottled):
		return KindThrottled
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindOther
	}
}

// Record is the outcome of one remediation attempt.
type Record struct {
	ResourceID string    `json:"resourceId"`
	AccountID  string    `json:"accountId,omitempty"`
	TagsAdded  []string  `json:"tagsAdded,omitempty"`
	Succeeded  bool      `json:"succeeded"`
	Skipped    bool      `json:"skipped,omitempty"`
	DryRun     bool      `json:"dryRun,omitempty"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  ErrorKind `json:"errorKind,omitempty"`
}

// Failed reports whether the write-back was attempted and failed.
func (r Record) Failed() bool {
	return !r.Succeeded && r.Error != ""
}

// Executor performs tag remediation through a TagWriter.
type Executor struct {
	writer  TagWriter
	dryRun  bool
	timeout time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithDryRun computes and records deltas without writing.
func WithDryRun(dryRun bool) Option {
	return func(e *Executor) { e.dryRun = dryRun }
}

// WithTimeout bounds each write-back call.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// New returns an Executor writing through w.
func New(w TagWriter, opts ...Option) *Executor {
	e := &Executor{writer: w}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DryRun reports whether the executor skips writes.
func (e *Executor) DryRun() bool {
	return e.dryRun
}

// Remediate adds the missing tags to res. missing is re-checked against the
// resource's current tags first; when nothing is missing the call is a no-op.
// On a successful write res.Tags is replaced by the written set.
func (e *Executor) Remediate(ctx context.Context, res *inventory.Resource, missing []string) Record {
	rec := Record{ResourceID: res.ID, AccountID: res.AccountID, DryRun: e.dryRun}

	delta := policy.MissingTags(dedupe(missing), *res)
	if len(delta) == 0 {
		rec.Succeeded = true
		rec.Skipped = true
		return rec
	}
	rec.TagsAdded = delta

	if e.dryRun {
		rec.Succeeded = true
		return rec
	}
	if e.writer == nil {
		rec.Error = "no tag writer configured"
		rec.ErrorKind = KindOther
		return rec
	}

	merged := MergeTags(res.Tags, delta)
	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	if err := e.writer.UpdateTags(callCtx, res.ID, merged); err != nil {
		rec.Error = fmt.Sprintf("updating tags: %v", err)
		rec.ErrorKind = Classify(err)
		return rec
	}

	res.Tags = merged
	rec.Succeeded = true
	return rec
}

// MergeTags returns current ∪ {k: ""} for every key in missing. Keys already
// present keep their value. current is not modified.
func MergeTags(current map[string]string, missing []string) map[string]string {
	out := make(map[string]string, len(current)+len(missing))
	for k, v := range current {
		out[k] = v
	}
	for _, k := range missing {
		if _, ok := out[k]; !ok {
			out[k] = ""
		}
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
