package imagestore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failing struct{}

func (failing) Put(context.Context, string, io.Reader) (string, error) {
	return "", errors.New("adapter down")
}

func TestLocalPut(t *testing.T) {
	dir := t.TempDir()
	s := Local{Dir: dir, BaseURL: "/uploads"}

	url, err := s.Put(context.Background(), "widget.png", strings.NewReader("imagedata"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/widget.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "widget.png"))
	require.NoError(t, err)
	assert.Equal(t, "imagedata", string(data))
}

func TestLocalPutStripsPath(t *testing.T) {
	dir := t.TempDir()
	s := Local{Dir: dir, BaseURL: "/uploads"}

	url, err := s.Put(context.Background(), "../../etc/widget.png", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/widget.png", url)

	_, err = os.Stat(filepath.Join(dir, "widget.png"))
	require.NoError(t, err)
}

func TestChainFallsThroughToNextAdapter(t *testing.T) {
	dir := t.TempDir()
	c := Chain{failing{}, Local{Dir: dir, BaseURL: "/uploads"}}

	url, err := c.Put(context.Background(), "widget.png", strings.NewReader("imagedata"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/widget.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "widget.png"))
	require.NoError(t, err)
	assert.Equal(t, "imagedata", string(data), "the second adapter must see the full object")
}

func TestChainAllAdaptersFail(t *testing.T) {
	c := Chain{failing{}, failing{}}

	_, err := c.Put(context.Background(), "widget.png", strings.NewReader("x"))
	require.Error(t, err)
}

func TestChainEmpty(t *testing.T) {
	_, err := Chain{}.Put(context.Background(), "widget.png", strings.NewReader("x"))
	require.Error(t, err)
}
