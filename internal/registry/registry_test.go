package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct{ received []any }

func (f *fakeSink) Receive(event any) error {
	f.received = append(f.received, event)
	return nil
}

type fakeSource struct {
	records []Record
}

func (f *fakeSource) IterateNodes(hubID string, visit func(Record)) {
	for _, r := range f.records {
		visit(r)
	}
}

func TestListAssignsContiguousOneBasedIndices(t *testing.T) {
	src := &fakeSource{records: []Record{
		{ID: "d1", Name: "Lamp"},
		{ID: "d2", Name: "Desk"},
		{ID: "d3", Name: "Hall"},
	}}

	v := List(src, "abcd1234abcd1234abcd1234")
	devices := v.Devices()

	require.Len(t, devices, 3)
	for i, d := range devices {
		assert.Equal(t, i+1, d.Index)
	}
}

func TestResolvePrefersRawIDOverIndex(t *testing.T) {
	src := &fakeSource{records: []Record{
		{ID: "d2", Name: "Other"},
		{ID: "1", Name: "Confusable"},
	}}
	v := List(src, "hub0000000000000000000000")

	d, ok := v.Resolve("1")
	require.True(t, ok)
	assert.Equal(t, "1", d.ID)
}

func TestResolveByUniqueIDAndIndex(t *testing.T) {
	src := &fakeSource{records: []Record{{ID: "d1", Name: "Lamp"}}}
	v := List(src, "hub0000000000000000000000")

	want := v.Devices()[0]

	byIdx, ok := v.Resolve("1")
	require.True(t, ok)
	assert.Equal(t, want.ID, byIdx.ID)

	byUID, ok := v.Resolve(want.UniqueID)
	require.True(t, ok)
	assert.Equal(t, want.ID, byUID.ID)
}

func TestResolveUnknownTokenReturnsFalse(t *testing.T) {
	src := &fakeSource{records: []Record{{ID: "d1", Name: "Lamp"}}}
	v := List(src, "hub0000000000000000000000")

	_, ok := v.Resolve("ghost")
	assert.False(t, ok)
}

func TestUniqueIDIsDeterministicPerHubAndIndex(t *testing.T) {
	src := &fakeSource{records: []Record{{ID: "d1"}, {ID: "d2"}}}
	v1 := List(src, "fixedhubid0000000000000000")
	v2 := List(src, "fixedhubid0000000000000000")

	assert.Equal(t, v1.Devices()[0].UniqueID, v2.Devices()[0].UniqueID)
	assert.NotEqual(t, v1.Devices()[0].UniqueID, v1.Devices()[1].UniqueID)
}

func TestSanitizeNameStripsHTMLTags(t *testing.T) {
	src := &fakeSource{records: []Record{{ID: "d1", Name: "<b>Living Room</b>"}}}
	v := List(src, "hub0000000000000000000000")

	name := v.Devices()[0].Name
	assert.NotContains(t, name, "<")
	assert.NotContains(t, name, ">")
}

func TestSinkReturnsBoundSink(t *testing.T) {
	sink := &fakeSink{}
	src := &fakeSource{records: []Record{{ID: "d1", Sink: sink}}}
	v := List(src, "hub0000000000000000000000")

	assert.Same(t, sink, v.Sink("d1"))
	assert.Nil(t, v.Sink("missing"))
}
