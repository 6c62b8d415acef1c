package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/timelineengine/internal/timeline/item"
	"github.com/banshee-data/timelineengine/internal/timeline/sample"
)

func TestCreateVisitRegistersItemAndSample(t *testing.T) {
	s := New(nil)
	sm := sample.New(sample.Raw{Date: time.Now()})
	it := s.CreateVisit(sm)

	assert.Same(t, it, s.GetItem(it.ID()))
	assert.Same(t, sm, s.GetSample(sm.ID))
}

func TestRetainPreventsNilGetItem(t *testing.T) {
	s := New(nil)
	sm := sample.New(sample.Raw{Date: time.Now()})
	it := s.CreateVisit(sm)
	s.Retain(it.ID(), it)

	assert.Same(t, it, s.GetItem(it.ID()))
	s.Release(it.ID())
}

func TestGetItemAbsentIsNil(t *testing.T) {
	s := New(nil)
	assert.Nil(t, s.GetItem(item.New(item.KindVisit).ID()))
}

func TestLinkRepairsBothSides(t *testing.T) {
	s := New(nil)
	a := s.CreateVisit(sample.New(sample.Raw{Date: time.Now()}))
	b := s.CreatePath(sample.New(sample.Raw{Date: time.Now().Add(time.Minute)}))

	s.Link(a, b)

	assert.Equal(t, b.ID(), *a.NextID())
	assert.Equal(t, a.ID(), *b.PreviousID())
}

func TestUnlinkNextClearsBothSides(t *testing.T) {
	s := New(nil)
	a := s.CreateVisit(sample.New(sample.Raw{Date: time.Now()}))
	b := s.CreatePath(sample.New(sample.Raw{Date: time.Now().Add(time.Minute)}))
	s.Link(a, b)

	s.UnlinkNext(a)

	assert.Nil(t, a.NextID())
	assert.Nil(t, b.PreviousID())
}

type fakePersister struct {
	items   []*item.Item
	samples []*sample.Sample
	err     error
}

func (f *fakePersister) SaveBatch(items []*item.Item, samples []*sample.Sample) error {
	if f.err != nil {
		return f.err
	}
	f.items = append(f.items, items...)
	f.samples = append(f.samples, samples...)
	return nil
}

func TestSaveDrainsDirtySetThroughPersister(t *testing.T) {
	p := &fakePersister{}
	s := New(p)
	it := s.CreateVisit(sample.New(sample.Raw{Date: time.Now()}))

	require.NoError(t, s.Save(true))
	assert.Len(t, p.items, 1)
	assert.Equal(t, it.ID(), p.items[0].ID())
	assert.Equal(t, 0, s.DirtyCount())
	assert.False(t, s.LastSaved().IsZero())
}

func TestSaveNoOpWhenNothingDirty(t *testing.T) {
	s := New(&fakePersister{})
	s.CreateVisit(sample.New(sample.Raw{Date: time.Now()}))
	require.NoError(t, s.Save(true))
	err := s.Save(true)
	assert.Error(t, err)
}

func TestProcessSerialisesClosures(t *testing.T) {
	s := New(nil)
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		s.Process(func() { order = append(order, i) })
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}
