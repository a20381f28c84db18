package sources

import (
	"context"
	"fmt"

	"github.com/petterhj/yt-dvr/types"
)

// FakeSource is a scriptable Source used by tests across packages.
type FakeSource struct {
	Name    string
	Items   map[string]types.Item
	Listing []types.Item
	// Unit produces the download unit handed to the runner. When nil,
	// DownloadUnit returns a unit that succeeds immediately.
	Unit func(job types.JobWithItem) DownloadUnit
}

// NewFakeSource creates a fake source with no known items.
func NewFakeSource(name string) *FakeSource {
	return &FakeSource{
		Name:  name,
		Items: make(map[string]types.Item),
	}
}

// AddItem registers an item the fake can resolve.
func (f *FakeSource) AddItem(itemID, title string) types.Item {
	item := types.Item{
		Source:  f.Name,
		ItemID:  itemID,
		Title:   title,
		ItemURL: fmt.Sprintf("https://example.com/%s/%s", f.Name, itemID),
	}
	f.Items[itemID] = item
	f.Listing = append(f.Listing, item)
	return item
}

func (f *FakeSource) Resolve(_ context.Context, itemID string) (types.Item, error) {
	item, ok := f.Items[itemID]
	if !ok {
		return types.Item{}, fmt.Errorf("%w: %s:%s", types.ErrItemNotFound, f.Name, itemID)
	}
	return item, nil
}

func (f *FakeSource) Catalog(_ context.Context) ([]types.Item, error) {
	return f.Listing, nil
}

func (f *FakeSource) Config() map[string]string {
	return map[string]string{"name": f.Name}
}

func (f *FakeSource) DownloadUnit(job types.JobWithItem) DownloadUnit {
	if f.Unit != nil {
		return f.Unit(job)
	}
	return &FakeUnit{}
}

// FakeUnit runs a scripted download outcome: it emits the configured
// ticks in order, then returns, fails, or panics.
type FakeUnit struct {
	Ticks    []types.JobProgress
	Result   string
	Err      error
	PanicMsg string
}

func (u *FakeUnit) Run(_ context.Context, progress ProgressFunc) (string, error) {
	for _, tick := range u.Ticks {
		progress(tick)
	}
	if u.PanicMsg != "" {
		panic(u.PanicMsg)
	}
	return u.Result, u.Err
}
