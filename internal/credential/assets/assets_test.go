package assets

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentKeyIsStable(t *testing.T) {
	a := ContentKey("docs/", []byte("pdf-bytes"))
	assert.True(t, strings.HasPrefix(a, "docs/"))
	assert.Len(t, a, len("docs/")+64)
	assert.Equal(t, a, ContentKey("docs/", []byte("pdf-bytes")))
	assert.NotEqual(t, a, ContentKey("docs/", []byte("other")))
}

func TestBuildMetadata(t *testing.T) {
	m := BuildMetadata(Descriptor{
		RecipientName:   "Maria Silva",
		RecipientID:     "2019001234",
		DocumentType:    "diploma",
		IssueDate:       time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		InstitutionName: "State University",
	}, "s3://bucket/docs/abc")

	assert.Equal(t, "Diploma: Maria Silva", m.Name)
	assert.Equal(t, "s3://bucket/docs/abc", m.Image)
	assert.Contains(t, m.Description, "State University")
	assert.Contains(t, m.Attributes, Attribute{TraitType: "Issue Date", Value: "2024-06-30"})
	assert.Contains(t, m.Attributes, Attribute{TraitType: "Recipient ID", Value: "2019001234"})

	raw, err := m.Encode()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "Diploma: Maria Silva", decoded["name"])
}

func TestMemory_PutIsContentAddressed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	p1, err := m.Put(ctx, "docs/", ContentTypePDF, []byte("%PDF-1.7"))
	require.NoError(t, err)
	p2, err := m.Put(ctx, "docs/", ContentTypePDF, []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Equal(t, 2, m.PutCount())

	data, ct, err := m.Get(ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))
	assert.Equal(t, ContentTypePDF, ct)

	_, _, err = m.Get(ctx, "mem://missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = m.Get(ctx, "s3://x/y")
	assert.ErrorIs(t, err, ErrBadPointer)

	link, err := m.Link(ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, p1, link)
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().Put(ctx, "docs/", ContentTypePDF, []byte("x"))
	assert.ErrorIs(t, err, ErrUnavailable)
}
