package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbedURL(t *testing.T) {
	assert.Equal(t,
		"https://drive.google.com/file/d/1AbC_d-9/preview",
		EmbedURL("https://drive.google.com/file/d/1AbC_d-9/view?usp=sharing"))
	assert.Equal(t,
		"https://drive.google.com/file/d/XYZ123/preview",
		EmbedURL("https://drive.google.com/open?id=XYZ123"))
	assert.Equal(t,
		"https://cdn.example.com/movie.mp4",
		EmbedURL("https://cdn.example.com/movie.mp4"))
}

func TestDownloadURL(t *testing.T) {
	assert.Equal(t,
		"https://drive.google.com/uc?export=download&id=1AbC_d-9",
		DownloadURL("https://drive.google.com/file/d/1AbC_d-9/view"))
	assert.Equal(t, "https://cdn.example.com/a.mp4", DownloadURL("https://cdn.example.com/a.mp4"))
}

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "The_Gods_Must_Be_Crazy_Episode_2.mp4", DownloadName("The Gods Must Be Crazy_Episode_2"))
}
