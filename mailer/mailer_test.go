package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptanceMessage(t *testing.T) {
	msg, err := AcceptanceMessage("pipeline@example.com", "uploads@example.com", "sunset.png")
	require.NoError(t, err)

	assert.Equal(t, "pipeline@example.com", msg.From)
	assert.Equal(t, "uploads@example.com", msg.To)
	assert.Equal(t, "Image accepted: sunset.png", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "sunset.png")
	assert.Contains(t, msg.HTMLBody, "accepted")
}

func TestRejectionMessage(t *testing.T) {
	msg, err := RejectionMessage("pipeline@example.com", "uploads@example.com", "movie.mp4")
	require.NoError(t, err)

	assert.Equal(t, "Image removed: movie.mp4", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "movie.mp4")
	assert.Contains(t, msg.HTMLBody, "removed")
}

func TestMessages_EscapeFilenames(t *testing.T) {
	msg, err := AcceptanceMessage("a@b.c", "d@e.f", `<script>alert("x")</script>.png`)
	require.NoError(t, err)
	assert.NotContains(t, msg.HTMLBody, "<script>")
	assert.Contains(t, msg.HTMLBody, "&lt;script&gt;")
}

func TestMessages_SpacesPreserved(t *testing.T) {
	msg, err := RejectionMessage("a@b.c", "d@e.f", "my holiday photo.png")
	require.NoError(t, err)
	assert.Contains(t, msg.HTMLBody, "my holiday photo.png")
}
