package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string              { return string(n) }
func (n namedJob) Run(context.Context) error { return nil }

func names(jobs []Job) []string {
	out := make([]string, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.Name())
	}
	return out
}

func TestRegistryOrderNilAndReplacement(t *testing.T) {
	reg := NewRegistry(namedJob("outbox-retention"), nil, namedJob("overdue-sweep"))
	reg.Register(nil)
	reg.Register(namedJob("outbox-retention"))

	assert.Equal(t, []string{"outbox-retention", "overdue-sweep"}, names(reg.Jobs()))

	jobs := reg.Jobs()
	jobs[0] = nil
	assert.NotNil(t, reg.Jobs()[0], "Jobs must return a copy")
}

func TestRegistryOnly(t *testing.T) {
	reg := NewRegistry(namedJob("outbox-retention"), namedJob("overdue-sweep"))

	all, err := reg.Only(nil)
	require.NoError(t, err)
	assert.Len(t, all.Jobs(), 2)

	one, err := reg.Only([]string{" overdue-sweep ", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"overdue-sweep"}, names(one.Jobs()))

	_, err = reg.Only([]string{"vacuum"})
	require.Error(t, err)
}

func TestZeroRegistryAcceptsJobs(t *testing.T) {
	var reg Registry
	reg.Register(namedJob("overdue-sweep"))
	assert.Len(t, reg.Jobs(), 1)
}
