// Package ytdlp wraps the yt-dlp command line tool: metadata probes, audio
// extraction with a prioritized format-selector chain, flat-playlist channel
// listing, and subtitle retrieval. Failures are classified from process exit
// and stderr into the shared error taxonomy, and every failed invocation logs
// the equivalent direct command line for manual retry.
package ytdlp
