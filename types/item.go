package types

import "fmt"

// Item is a piece of content tracked by the recorder, uniquely identified
// by its (source, item_id) pair. The descriptive fields come straight from
// the source's metadata API and are never interpreted by the core.
type Item struct {
	ID            string `json:"id"`
	Source        string `json:"source"`
	ItemID        string `json:"item_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Thumbnail     string `json:"thumbnail,omitempty"`
	SeriesTitle   string `json:"series_title,omitempty"`
	SeasonNumber  int    `json:"season_number,omitempty"`
	EpisodeNumber int    `json:"episode_number,omitempty"`
	ItemURL       string `json:"item_url,omitempty"`
	SeriesURL     string `json:"series_url,omitempty"`
}

// String returns the canonical source:item_id form used in logs.
func (i Item) String() string {
	return fmt.Sprintf("%s:%s", i.Source, i.ItemID)
}

// ItemWithJobs is the wire form of an Item together with its job history.
type ItemWithJobs struct {
	Item
	Jobs []Job `json:"jobs"`
}
