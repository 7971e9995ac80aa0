package attachment

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *DiskService {
	t.Helper()
	svc, err := NewDiskService(t.TempDir())
	require.NoError(t, err)
	return svc
}

func TestPutDeduplicatesContent(t *testing.T) {
	svc := newService(t)

	first, err := svc.Put(strings.NewReader("same bytes"))
	require.NoError(t, err)
	second, err := svc.Put(strings.NewReader("same bytes"))
	require.NoError(t, err)

	assert.True(t, first.IsNew)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, int64(10), first.Size)
	assert.Equal(t, 2, svc.References(first.Key))
}

func TestReleaseDeletesAtZeroReferences(t *testing.T) {
	svc := newService(t)

	res, err := svc.Put(strings.NewReader("payload"))
	require.NoError(t, err)
	_, err = svc.Put(strings.NewReader("payload"))
	require.NoError(t, err)

	require.NoError(t, svc.Release(res.Key))
	assert.True(t, svc.Exists(res.Key))

	require.NoError(t, svc.Release(res.Key))
	assert.False(t, svc.Exists(res.Key))
}

func TestOpenRejectsInvalidKey(t *testing.T) {
	svc := newService(t)

	_, _, err := svc.Open("../../etc/passwd")
	assert.True(t, IsNotFound(err))
}

func TestBlobDownload(t *testing.T) {
	svc := newService(t)

	blob, err := NewBlob(svc, "notes.txt", strings.NewReader("hello blob"))
	require.NoError(t, err)
	assert.Equal(t, ".txt", blob.Extension())

	var buf bytes.Buffer
	require.NoError(t, blob.Download(&buf))
	assert.Equal(t, "hello blob", buf.String())
}

func TestPurgeDetachesFromOne(t *testing.T) {
	svc := newService(t)
	blob, err := NewBlob(svc, "a.bin", strings.NewReader("a"))
	require.NoError(t, err)

	one := NewOne("avatar")
	a := one.Attach(blob)
	require.True(t, one.Attached())

	require.NoError(t, a.Purge())

	assert.False(t, one.Attached())
	assert.True(t, a.Purged())
	assert.False(t, svc.Exists(blob.Key))

	// Purging twice is harmless
	require.NoError(t, a.Purge())
}

func TestPurgeDetachesFromMany(t *testing.T) {
	svc := newService(t)
	many := NewMany("documents")

	var attached []*Attachment
	for _, body := range []string{"one", "two", "three"} {
		blob, err := NewBlob(svc, body+".txt", strings.NewReader(body))
		require.NoError(t, err)
		attached = append(attached, many.Attach(blob))
	}

	require.NoError(t, attached[1].Purge())

	require.Len(t, many.Attachments, 2)
	assert.Same(t, attached[0], many.Attachments[0])
	assert.Same(t, attached[2], many.Attachments[1])
}
