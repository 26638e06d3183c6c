package server

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	writeSSE(&buf, "donation", []byte(`{"txid":"TX1"}`))
	assert.Equal(t, "event: donation\ndata: {\"txid\":\"TX1\"}\n\n", buf.String())

	buf.Reset()
	writeSSE(&buf, "", []byte("keepalive"))
	assert.Equal(t, ": keepalive\n\n", buf.String())
}

func TestStreamSubject(t *testing.T) {
	subject, label := streamSubject("")
	assert.Equal(t, "campaigns.*.donations", subject)
	assert.Equal(t, "all", label)

	subject, label = streamSubject("7")
	assert.Equal(t, "campaigns.7.donations", subject)
	assert.Equal(t, "campaign", label)
}
