package main

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	ytdl "github.com/kkdai/youtube/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const downloadUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var youtubeRe = regexp.MustCompile(`(?:youtube\.com/(?:watch\?|shorts/|live/)|youtu\.be/)`)

// Downloader fetches a source reference into a per-job temp file.
type Downloader struct {
	httpClient *http.Client
	ytClient   *ytdl.Client
	maxBytes   int64
	retries    uint
	retryDelay time.Duration
}

func NewDownloader(cfg *Config) *Downloader {
	httpClient := &http.Client{
		Timeout: 0, // large files; per-job context bounds the fetch
		Transport: &http.Transport{
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
	}
	return &Downloader{
		httpClient: httpClient,
		ytClient:   &ytdl.Client{HTTPClient: httpClient},
		maxBytes:   cfg.ExtendedMaxBytes,
		retries:    cfg.DownloadRetries,
		retryDelay: time.Second,
	}
}

// Fetch downloads the reference into dir and returns the artifact path and
// its byte size. Transient failures are retried with exponential backoff;
// permanent failures surface immediately. The partial file is removed on
// every failure path.
func (d *Downloader) Fetch(ctx context.Context, rawURL, dir string) (string, int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return "", 0, &DownloadError{URL: rawURL, Permanent: true, Err: errors.New("unsupported source reference")}
	}

	var dest string
	if youtubeRe.MatchString(rawURL) {
		dest = filepath.Join(dir, "source.mp4")
		err = d.fetchYouTube(ctx, rawURL, dest)
	} else {
		dest = filepath.Join(dir, "source"+artifactExt(u))
		err = d.fetchHTTP(ctx, rawURL, dest)
	}
	if err != nil {
		os.Remove(dest)
		return "", 0, err
	}

	info, err := os.Stat(dest)
	if err != nil {
		return "", 0, &DownloadError{URL: rawURL, Permanent: true, Err: err}
	}
	if info.Size() == 0 {
		os.Remove(dest)
		return "", 0, &DownloadError{URL: rawURL, Permanent: true, Err: errors.New("downloaded file is empty")}
	}
	log.Info().Str("url", rawURL).Int64("size", info.Size()).Msg("successfully downloaded the source")
	return dest, info.Size(), nil
}

func (d *Downloader) fetchYouTube(ctx context.Context, rawURL, dest string) error {
	video, err := d.ytClient.GetVideoContext(ctx, rawURL)
	if err != nil {
		// Unavailable, private or removed videos are not retryable.
		return &DownloadError{URL: rawURL, Permanent: true, Err: err}
	}

	format := pickFormat(video)
	if format == nil {
		return &DownloadError{URL: rawURL, Permanent: true, Err: errors.New("no downloadable format with audio")}
	}
	if format.ContentLength > d.maxBytes {
		return &SizeLimitError{Size: format.ContentLength, Limit: d.maxBytes}
	}

	err = retry.Do(
		func() error {
			stream, _, err := d.ytClient.GetStreamContext(ctx, video, format)
			if err != nil {
				return err
			}
			defer stream.Close()
			return d.writeCapped(dest, stream)
		},
		retry.Context(ctx),
		retry.Attempts(d.retries),
		retry.Delay(d.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		var sizeErr *SizeLimitError
		if errors.As(err, &sizeErr) {
			return sizeErr
		}
		return &DownloadError{URL: rawURL, Err: err}
	}
	return nil
}

func (d *Downloader) fetchHTTP(ctx context.Context, rawURL, dest string) error {
	err := retry.Do(
		func() error { return d.httpAttempt(ctx, rawURL, dest) },
		retry.Context(ctx),
		retry.Attempts(d.retries),
		retry.Delay(d.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		var sizeErr *SizeLimitError
		if errors.As(err, &sizeErr) {
			return sizeErr
		}
		var dlErr *DownloadError
		if errors.As(err, &dlErr) {
			return dlErr
		}
		return &DownloadError{URL: rawURL, Err: err}
	}
	return nil
}

// httpAttempt resumes from whatever a previous attempt already wrote.
func (d *Downloader) httpAttempt(ctx context.Context, rawURL, dest string) error {
	var written int64
	if info, err := os.Stat(dest); err == nil {
		written = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return retry.Unrecoverable(&DownloadError{URL: rawURL, Permanent: true, Err: err})
	}
	req.Header.Set("User-Agent", downloadUserAgent)
	if written > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(written, 10)+"-")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusPartialContent:
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode >= 500:
		return errors.Errorf("transient status %d", resp.StatusCode)
	default:
		return retry.Unrecoverable(&DownloadError{
			URL:       rawURL,
			Permanent: true,
			Err:       errors.Errorf("status %d", resp.StatusCode),
		})
	}

	if resp.ContentLength > 0 && written+resp.ContentLength > d.maxBytes {
		return retry.Unrecoverable(&SizeLimitError{Size: written + resp.ContentLength, Limit: d.maxBytes})
	}

	flags := os.O_CREATE | os.O_WRONLY
	if resp.StatusCode == http.StatusPartialContent && written > 0 {
		flags |= os.O_APPEND
	} else {
		// Server ignored the Range request, start over.
		flags |= os.O_TRUNC
		written = 0
	}

	file, err := os.OpenFile(dest, flags, 0o644)
	if err != nil {
		return retry.Unrecoverable(&DownloadError{URL: rawURL, Permanent: true, Err: err})
	}
	defer file.Close()

	// Broken transfers stay retryable; the next attempt resumes from
	// what made it to disk.
	n, err := io.Copy(file, io.LimitReader(resp.Body, d.maxBytes-written+1))
	if err != nil {
		return err
	}
	if written+n > d.maxBytes {
		return retry.Unrecoverable(&SizeLimitError{Size: written + n, Limit: d.maxBytes})
	}
	return nil
}

// writeCapped streams into dest, failing once the size cap is exceeded.
func (d *Downloader) writeCapped(dest string, src io.Reader) error {
	file, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return retry.Unrecoverable(err)
	}
	defer file.Close()

	n, err := io.Copy(file, io.LimitReader(src, d.maxBytes+1))
	if err != nil {
		return err
	}
	if n > d.maxBytes {
		return retry.Unrecoverable(&SizeLimitError{Size: n, Limit: d.maxBytes})
	}
	return nil
}

// pickFormat walks the quality ladder looking for an mp4 stream that
// carries audio, highest resolution first.
func pickFormat(video *ytdl.Video) *ytdl.Format {
	var candidates []*ytdl.Format
	for i := range video.Formats {
		f := &video.Formats[i]
		if f.AudioChannels == 0 {
			continue
		}
		candidates = append(candidates, f)
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Height > candidates[j].Height
	})
	for _, maxHeight := range []int{1080, 720, 480} {
		for _, f := range candidates {
			if f.Height <= maxHeight && isMP4(f) {
				return f
			}
		}
	}
	// Nothing on the ladder, take whatever plays.
	return candidates[len(candidates)-1]
}

func isMP4(f *ytdl.Format) bool {
	return len(f.MimeType) >= 9 && f.MimeType[:9] == "video/mp4"
}

func artifactExt(u *url.URL) string {
	switch ext := path.Ext(u.Path); ext {
	case ".mp4", ".webm", ".avi", ".mov", ".mkv", ".flv":
		return ext
	default:
		return ".mp4"
	}
}
