package domain

import (
	"regexp"
	"strings"
)

var (
	drivePathID  = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)
	driveQueryID = regexp.MustCompile(`id=([a-zA-Z0-9_-]+)`)
	unsafeName   = regexp.MustCompile(`(?i)[^a-z0-9]`)
)

func driveFileID(link string) (string, bool) {
	if !strings.Contains(link, "drive.google.com") {
		return "", false
	}
	if m := drivePathID.FindStringSubmatch(link); m != nil {
		return m[1], true
	}
	if m := driveQueryID.FindStringSubmatch(link); m != nil {
		return m[1], true
	}
	return "", false
}

// EmbedURL rewrites Google Drive share links to the embeddable preview
// player. Other links are returned unchanged.
func EmbedURL(link string) string {
	if id, ok := driveFileID(link); ok {
		return "https://drive.google.com/file/d/" + id + "/preview"
	}
	return link
}

// DownloadURL rewrites Google Drive share links to a direct download.
func DownloadURL(link string) string {
	if id, ok := driveFileID(link); ok {
		return "https://drive.google.com/uc?export=download&id=" + id
	}
	return link
}

// DownloadName builds a filesystem-safe .mp4 name from a title.
func DownloadName(title string) string {
	return unsafeName.ReplaceAllString(title, "_") + ".mp4"
}
