package schema

import (
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/rowseek/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func desc(id string, cols ...string) *core.SourceDescriptor {
	return &core.SourceDescriptor{ID: id, Name: id, Columns: cols}
}

func TestIndex_PublishAndColumns(t *testing.T) {
	x := New()
	x.Publish(desc("clients", "name", "email", "opened"))

	cols, ok := x.Columns("clients")
	require.True(t, ok)
	assert.Equal(t, []string{"name", "email", "opened"}, cols)

	cols[0] = "mutated"
	again, _ := x.Columns("clients")
	assert.Equal(t, "name", again[0], "Columns should return a copy")

	_, ok = x.Columns("missing")
	assert.False(t, ok)
}

func TestIndex_ReplaceAndRemove(t *testing.T) {
	x := New()
	x.Publish(desc("a", "name", "old"))
	x.Publish(desc("a", "name", "new"))

	cols, _ := x.Columns("a")
	assert.Equal(t, []string{"name", "new"}, cols)
	assert.NotContains(t, x.Vocabulary(), "old")

	x.Remove("a")
	x.Remove("never-loaded")
	assert.Empty(t, x.Sources())
	assert.Empty(t, x.AllColumns())
}

func TestIndex_Sample(t *testing.T) {
	x := New()
	x.Publish(desc("a", "name", "email", "zip"))
	x.Publish(desc("b", "name", "phone", "email"))
	x.Publish(desc("c", "name", "amount"))

	assert.Equal(t, []string{"name", "email", "amount", "phone", "zip"}, x.Sample(0))
	assert.Equal(t, []string{"name", "email"}, x.Sample(2))
	assert.Equal(t, x.Sample(3), x.Sample(3), "sample is deterministic")
}

func TestIndex_Resolve(t *testing.T) {
	x := New()
	x.Publish(desc("a", "Name", "Email"))
	x.Publish(desc("b", "name", "email_address"))

	assert.Equal(t, []string{"Name", "name"}, x.Resolve([]string{"NAME"}))
	assert.Equal(t, []string{"Email", "Name", "name"}, x.Resolve([]string{"email", " name ", "Name"}))
	assert.Empty(t, x.Resolve([]string{"unknown"}))
	assert.Empty(t, x.Resolve(nil))
}

func TestIndex_AllColumns(t *testing.T) {
	x := New()
	x.Publish(desc("visits", "Name", "Visit Date"))
	x.Publish(desc("clients", "Name", "Email", "Date of Birth"))

	all := x.AllColumns()
	assert.Equal(t, map[string][]string{
		"Name":          {"clients", "visits"},
		"Email":         {"clients"},
		"Date of Birth": {"clients"},
		"Visit Date":    {"visits"},
	}, all)
	assert.Equal(t, []string{"clients", "visits"}, x.Sources())

	all["Name"][0] = "mutated"
	assert.Equal(t, []string{"clients", "visits"}, x.AllColumns()["Name"])

	x.Remove("visits")
	assert.Equal(t, map[string][]string{
		"Name":          {"clients"},
		"Email":         {"clients"},
		"Date of Birth": {"clients"},
	}, x.AllColumns())
}

func TestIndex_ConcurrentReaders(t *testing.T) {
	x := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				x.Publish(desc(fmt.Sprintf("s%d", i), "name", fmt.Sprintf("col%d", j)))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				for col, ids := range x.AllColumns() {
					assert.NotEmpty(t, col)
					assert.NotEmpty(t, ids)
				}
				_ = x.Sample(5)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, x.Sources(), 8)
}
