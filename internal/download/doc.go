// Package download implements the download job on top of yt-dlp
// (via github.com/lrstanley/go-ytdlp): fetch the best audio stream of a single
// URL, extract it to FLAC, report byte-level progress and check that the
// final file exists.
package download
