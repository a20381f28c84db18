package sources

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/petterhj/yt-dvr/types"
)

const (
	youtubeAPIBase  = "https://www.googleapis.com/youtube/v3"
	youtubeWatchURL = "https://www.youtube.com/watch?v="

	// resolveConcurrency bounds the parallel detail lookups performed
	// while building the playlist catalog.
	resolveConcurrency = 4
)

// YouTubeConfig holds the settings for the YouTube source.
type YouTubeConfig struct {
	APIKey           string
	PlaylistID       string
	PlaylistMaxCount int
	OutputPath       string
	OutputTemplate   string
}

// YouTube resolves items through the YouTube Data API and downloads them
// by shelling out to yt-dlp.
type YouTube struct {
	cfg     YouTubeConfig
	client  *http.Client
	log     *log.Logger
	apiBase string
}

// NewYouTube creates the YouTube source.
func NewYouTube(cfg YouTubeConfig, logger *log.Logger) *YouTube {
	return &YouTube{
		cfg:     cfg,
		client:  &http.Client{},
		log:     logger.With("source", "youtube"),
		apiBase: youtubeAPIBase,
	}
}

type ytSnippet struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelTitle string `json:"channelTitle"`
	Thumbnails   struct {
		High struct {
			URL string `json:"url"`
		} `json:"high"`
	} `json:"thumbnails"`
	ResourceID struct {
		VideoID string `json:"videoId"`
	} `json:"resourceId"`
}

type ytListResponse struct {
	Items []struct {
		Snippet ytSnippet `json:"snippet"`
	} `json:"items"`
}

// Resolve fetches metadata for a single video id.
func (y *YouTube) Resolve(ctx context.Context, itemID string) (types.Item, error) {
	var resp ytListResponse
	err := y.get(ctx, "videos", url.Values{
		"part": {"snippet"},
		"id":   {itemID},
	}, &resp)
	if err != nil {
		return types.Item{}, err
	}

	if len(resp.Items) == 0 {
		return types.Item{}, fmt.Errorf("%w: youtube:%s", types.ErrItemNotFound, itemID)
	}

	return itemFromSnippet(itemID, resp.Items[0].Snippet), nil
}

// Catalog lists the configured playlist, skipping duplicate entries and
// resolving full video metadata concurrently.
func (y *YouTube) Catalog(ctx context.Context) ([]types.Item, error) {
	var resp ytListResponse
	err := y.get(ctx, "playlistItems", url.Values{
		"part":       {"snippet"},
		"playlistId": {y.cfg.PlaylistID},
		"maxResults": {strconv.Itoa(y.cfg.PlaylistMaxCount)},
	}, &resp)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	for _, entry := range resp.Items {
		id := entry.Snippet.ResourceID.VideoID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	items := make([]types.Item, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			item, err := y.Resolve(gctx, id)
			if err != nil {
				return err
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return items, nil
}

// Config describes the source configuration for the diagnostics endpoint.
func (y *YouTube) Config() map[string]string {
	return map[string]string{
		"playlist_id":     y.cfg.PlaylistID,
		"output_path":     y.cfg.OutputPath,
		"output_template": y.cfg.OutputTemplate,
	}
}

// DownloadUnit returns a yt-dlp invocation bound to the job's item.
func (y *YouTube) DownloadUnit(job types.JobWithItem) DownloadUnit {
	return &ytDlpUnit{
		item:           job.Item,
		outputPath:     y.cfg.OutputPath,
		outputTemplate: y.cfg.OutputTemplate,
		log:            y.log.With("job", job.Job.ID),
	}
}

func (y *YouTube) get(ctx context.Context, resource string, params url.Values, out any) error {
	params.Set("key", y.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		y.apiBase+"/"+resource+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build youtube request: %w", err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return fmt.Errorf("youtube api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("youtube api returned %s for %s", resp.Status, resource)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode youtube response: %w", err)
	}
	return nil
}

func itemFromSnippet(itemID string, snippet ytSnippet) types.Item {
	return types.Item{
		Source:      "youtube",
		ItemID:      itemID,
		Title:       snippet.Title,
		Description: snippet.Description,
		Thumbnail:   snippet.Thumbnails.High.URL,
		SeriesTitle: snippet.ChannelTitle,
		ItemURL:     youtubeWatchURL + itemID,
	}
}

// progressPrefix tags the machine-readable progress lines yt-dlp prints
// when invoked with our progress template.
const progressPrefix = "progress "

// ytDlpUnit downloads one item by running yt-dlp as a subprocess and
// parsing its progress output.
type ytDlpUnit struct {
	item           types.Item
	outputPath     string
	outputTemplate string
	log            *log.Logger
}

func (u *ytDlpUnit) Run(ctx context.Context, progress ProgressFunc) (string, error) {
	args := []string{
		"--newline",
		"--progress-template",
		"download:" + progressPrefix + "%(progress.status)s %(progress.downloaded_bytes)s %(progress.total_bytes)s",
		"--paths", u.outputPath,
		"--output", u.outputTemplate,
		"--write-subs",
		"--write-thumbnail",
		"--remux-video", "mkv",
		"--embed-metadata",
		"--embed-chapters",
		"--embed-subs",
		"--embed-thumbnail",
		u.item.ItemURL,
	}

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to open yt-dlp stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	readErr := consumeProgress(stdout, progress)

	if err := cmd.Wait(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("yt-dlp failed for %s: %s", u.item, msg)
	}
	if readErr != nil {
		return "", fmt.Errorf("failed to read yt-dlp output for %s: %w", u.item, readErr)
	}

	u.log.Debug("download finished", "item", u.item.String())
	return "", nil
}

// consumeProgress reads the yt-dlp stdout stream line by line, emitting
// a tick for every progress line. It returns the stream's read error,
// if any, so a broken pipe does not pass for a clean end of output.
func consumeProgress(r io.Reader, progress ProgressFunc) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, progressPrefix) {
			continue
		}
		if tick, ok := parseProgressLine(line); ok {
			progress(tick)
		}
	}
	return scanner.Err()
}

// parseProgressLine parses "progress <status> <downloaded> <total>" where
// the byte counts may be "NA" while yt-dlp is still probing.
func parseProgressLine(line string) (types.JobProgress, bool) {
	fields := strings.Fields(strings.TrimPrefix(line, progressPrefix))
	if len(fields) != 3 {
		return types.JobProgress{}, false
	}

	tick := types.JobProgress{Message: fields[0]}
	if n, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
		tick.DownloadedBytes = &n
	}
	if n, err := strconv.ParseInt(fields[2], 10, 64); err == nil {
		tick.TotalBytes = &n
	}
	return tick, true
}
