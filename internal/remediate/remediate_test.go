package remediate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjourdan1/azaudit/internal/inventory"
	"github.com/kjourdan1/azaudit/internal/policy"
)

type fakeWriter struct {
	mu     sync.Mutex
	calls  int
	last   map[string]string
	err    error
	delay  time.Duration
	stored map[string]map[string]string
}

func (f *fakeWriter) UpdateTags(ctx context.Context, resourceID string, tags map[string]string) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.last = tags
	if f.stored == nil {
		f.stored = map[string]map[string]string{}
	}
	f.stored[resourceID] = tags
	return nil
}

func TestRemediate_AddsMissingTagsAndIsIdempotent(t *testing.T) {
	w := &fakeWriter{}
	exec := New(w)
	res := &inventory.Resource{ID: "vm1", AccountID: "sub1", Tags: map[string]string{"Environment": "prod"}}

	rule := policy.NewTagPresenceRule("tags", []string{"Environment", "CostCenter"})
	result := policy.Evaluate(rule, *res, nil)
	require.Equal(t, policy.NonCompliant, result.Outcome)

	rec := exec.Remediate(context.Background(), res, result.Missing)
	assert.True(t, rec.Succeeded)
	assert.False(t, rec.Skipped)
	assert.Equal(t, []string{"CostCenter"}, rec.TagsAdded)
	assert.Equal(t, map[string]string{"Environment": "prod", "CostCenter": ""}, w.last)
	assert.Equal(t, map[string]string{"Environment": "prod", "CostCenter": ""}, res.Tags)
	assert.Equal(t, 1, w.calls)

	again := policy.Evaluate(rule, *res, nil)
	assert.Equal(t, policy.Compliant, again.Outcome)
	assert.Empty(t, again.Missing)

	rec = exec.Remediate(context.Background(), res, result.Missing)
	assert.True(t, rec.Skipped)
	assert.Empty(t, rec.TagsAdded)
	assert.Equal(t, 1, w.calls, "second remediation must not write")
}

func TestRemediate_NeverOverwritesExistingValues(t *testing.T) {
	w := &fakeWriter{}
	res := &inventory.Resource{ID: "vm1", Tags: map[string]string{"Owner": "alice"}}

	rec := New(w).Remediate(context.Background(), res, []string{"Owner", "Environment"})
	assert.True(t, rec.Succeeded)
	assert.Equal(t, []string{"Environment"}, rec.TagsAdded)
	assert.Equal(t, "alice", w.last["Owner"])
	assert.Equal(t, "", w.last["Environment"])
}

func TestRemediate_NilTags(t *testing.T) {
	w := &fakeWriter{}
	res := &inventory.Resource{ID: "vm1"}

	rec := New(w).Remediate(context.Background(), res, []string{"Owner", "Owner"})
	assert.True(t, rec.Succeeded)
	assert.Equal(t, map[string]string{"Owner": ""}, w.last)
}

func TestRemediate_FailureIsRecorded(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"auth", fmt.Errorf("403: %w", ErrAuth), KindAuth},
		{"throttled", fmt.Errorf("429: %w", ErrThrottled), KindThrottled},
		{"not found", fmt.Errorf("404: %w", ErrNotFound), KindNotFound},
		{"other", errors.New("boom"), KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWriter{err: tt.err}
			res := &inventory.Resource{ID: "vm1", Tags: map[string]string{"Environment": "prod"}}

			rec := New(w).Remediate(context.Background(), res, []string{"Owner"})
			assert.False(t, rec.Succeeded)
			assert.True(t, rec.Failed())
			assert.Equal(t, tt.kind, rec.ErrorKind)
			assert.Contains(t, rec.Error, "updating tags")
			assert.Equal(t, map[string]string{"Environment": "prod"}, res.Tags, "tags unchanged on failure")
			assert.Equal(t, 1, w.calls, "no retry")
		})
	}
}

func TestRemediate_Timeout(t *testing.T) {
	w := &fakeWriter{delay: time.Second}
	res := &inventory.Resource{ID: "vm1"}

	rec := New(w, WithTimeout(10*time.Millisecond)).Remediate(context.Background(), res, []string{"Owner"})
	assert.False(t, rec.Succeeded)
	assert.Equal(t, KindTimeout, rec.ErrorKind)
}

func TestRemediate_DryRun(t *testing.T) {
	w := &fakeWriter{}
	res := &inventory.Resource{ID: "vm1", Tags: map[string]string{}}

	exec := New(w, WithDryRun(true))
	assert.True(t, exec.DryRun())
	rec := exec.Remediate(context.Background(), res, []string{"Owner"})
	assert.True(t, rec.Succeeded)
	assert.True(t, rec.DryRun)
	assert.Equal(t, []string{"Owner"}, rec.TagsAdded)
	assert.Zero(t, w.calls)
	assert.Empty(t, res.Tags)
}

func TestRemediate_NoWriter(t *testing.T) {
	rec := New(nil).Remediate(context.Background(), &inventory.Resource{ID: "vm1"}, []string{"Owner"})
	assert.True(t, rec.Failed())
	assert.Equal(t, KindOther, rec.ErrorKind)
}

func TestMergeTags(t *testing.T) {
	current := map[string]string{"A": "1"}
	merged := MergeTags(current, []string{"A", "B"})
	assert.Equal(t, map[string]string{"A": "1", "B": ""}, merged)
	assert.Equal(t, map[string]string{"A": "1"}, current, "input not modified")
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorKind(""), Classify(nil))
	assert.Equal(t, KindTimeout, Classify(fmt.Errorf("call: %w", context.DeadlineExceeded)))
}
