package cover

import (
	"context"
	"image"
	"image/color"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/lepinkainen/everybook/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestTileCopies(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		wantCopies int
	}{
		{"portrait cover", 128, 192, 4},
		{"square", 100, 100, 3},
		{"very wide", 1000, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := imaging.New(tt.w, tt.h, color.Black)
			out, err := Tile(src, 220, 2.25)
			require.NoError(t, err)

			scaled := imaging.Resize(src, 0, 220, imaging.Lanczos)
			require.Equal(t, 220, out.Bounds().Dy())
			require.Equal(t, scaled.Bounds().Dx()*tt.wantCopies, out.Bounds().Dx())
		})
	}
}

func TestTileEmptyImage(t *testing.T) {
	_, err := Tile(image.NewNRGBA(image.Rect(0, 0, 0, 0)), 220, 2.25)
	require.ErrorIs(t, err, ErrEmptyImage)
}

func TestBuildCoverArt(t *testing.T) {
	env := testutil.NewTestEnv(t)
	jpeg := testutil.CoverJPEG(t, 128, 192)
	server := testutil.NewIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(jpeg)
	}))

	comp := New(env.Path("tmp"), WithHTTPClient(server.Client()))
	require.NoError(t, comp.EnsureDir())

	path, err := comp.BuildCoverArt(context.Background(), server.URL+"/cover")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(comp.Dir(), TiledFile), path)
	require.True(t, env.FileExists("tmp/"+CoverFile))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	size := testutil.DecodeSize(t, data)
	require.Equal(t, 220, size.Y)
	require.Equal(t, 147*4, size.X)

	require.NoError(t, comp.Cleanup())
	require.False(t, env.FileExists("tmp/"+CoverFile))
	require.False(t, env.FileExists("tmp/"+TiledFile))
	require.NoError(t, comp.Cleanup(), "cleanup of missing files is not an error")
}

func TestBuildCoverArtErrors(t *testing.T) {
	env := testutil.NewTestEnv(t)
	server := testutil.NewIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("not an image"))
	}))

	comp := New(env.Path("tmp"), WithHTTPClient(server.Client()))
	require.NoError(t, comp.EnsureDir())

	_, err := comp.BuildCoverArt(context.Background(), server.URL+"/missing")
	require.ErrorContains(t, err, "unexpected status 404")

	_, err = comp.BuildCoverArt(context.Background(), server.URL+"/garbage")
	require.ErrorContains(t, err, "decoding cover")
}

func TestEnsureDirFailsOnFile(t *testing.T) {
	env := testutil.NewTestEnv(t)
	file := env.WriteFile("occupied", []byte("x"))

	err := New(file).EnsureDir()
	require.Error(t, err)
}
