package devserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulkimage/internal/backend"
	"bulkimage/internal/domain"
	"bulkimage/internal/imaging"
)

func newTestClient(t *testing.T) (*Server, *backend.Client) {
	t.Helper()
	srv := New()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, backend.New(backend.Options{BaseURL: ts.URL, Strict: true})
}

func pngUpload(t *testing.T, name string) imaging.Upload {
	t.Helper()
	u, err := imaging.NewUpload(name, placeholderPNG(name, 0, 16))
	require.NoError(t, err)
	return u
}

func TestSplitProducts(t *testing.T) {
	got := splitProducts("Red Mug, Blue Mug\n\n  Teapot \n,")
	assert.Equal(t, []string{"Red Mug", "Blue Mug", "Teapot"}, got)
	assert.Empty(t, splitProducts("  \n , "))
}

func TestWorkflowRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv, c := newTestClient(t)

	p, err := c.CreateProject(ctx, "Batch", "", nil)
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	assert.Empty(t, p.Cards)

	p, err = c.ParseInput(ctx, p.ID, "Red Mug\nBlue Mug", []imaging.Upload{pngUpload(t, "green_vase.png")})
	require.NoError(t, err)
	require.Len(t, p.Cards, 3)
	assert.Equal(t, "green vase", p.Cards[2].ProductName)
	for _, card := range p.Cards {
		assert.Equal(t, domain.StatusPending, card.Status)
	}

	ack, err := c.GenerateImages(ctx, p.ID, backend.GenerateRequest{NumImagesPerProduct: 3, ImageSize: "small"})
	require.NoError(t, err)
	assert.Equal(t, "Image generation completed", ack.Message())

	p, err = c.GetProject(ctx, p.ID)
	require.NoError(t, err)
	for _, card := range p.Cards {
		assert.Equal(t, domain.StatusImagesFetched, card.Status)
		assert.Len(t, card.ImageOptions, 3)
	}

	first := p.Cards[0]
	_, err = c.SelectImage(ctx, first.ID, first.ImageOptions[1].ID)
	require.NoError(t, err)
	_, err = c.UploadImage(ctx, p.Cards[1].ID, pngUpload(t, "custom.png"))
	require.NoError(t, err)

	p, err = c.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusImageSelected, p.Cards[0].Status)
	assert.Equal(t, first.ImageOptions[1].OriginalURL, p.Cards[0].SelectedImageURL)
	assert.Equal(t, domain.StatusImageUploaded, p.Cards[1].Status)
	assert.NotEmpty(t, p.Cards[1].UploadedImage)

	_, err = c.ProcessProject(ctx, p.ID, backend.ProcessRequest{OutputFormat: "png"})
	require.NoError(t, err)
	stored, ok := srv.Project(p.ID)
	require.True(t, ok)
	assert.Equal(t, "completed", stored.Status)
	assert.Equal(t, domain.StatusCompleted, stored.Cards[0].Status)
	assert.Equal(t, domain.StatusCompleted, stored.Cards[1].Status)
	assert.Equal(t, domain.StatusImagesFetched, stored.Cards[2].Status)

	data, err := c.Fetch(ctx, stored.Cards[0].FinalImageURL)
	require.NoError(t, err)
	assert.Equal(t, "image/png", imaging.DetectContentType(data))
}

func TestSelectionIsExclusive(t *testing.T) {
	ctx := context.Background()
	srv, c := newTestClient(t)
	p, err := c.CreateProject(ctx, "Batch", "", nil)
	require.NoError(t, err)
	p, err = c.ParseInput(ctx, p.ID, "Lamp", nil)
	require.NoError(t, err)
	_, err = c.GenerateImages(ctx, p.ID, backend.GenerateRequest{NumImagesPerProduct: 2, ImageSize: "medium"})
	require.NoError(t, err)
	p, _ = srv.Project(p.ID)
	card := p.Cards[0]

	_, err = c.UploadImage(ctx, card.ID, pngUpload(t, "mine.png"))
	require.NoError(t, err)
	for _, opt := range card.ImageOptions {
		_, err = c.SelectImage(ctx, card.ID, opt.ID)
		require.NoError(t, err)
	}

	p, _ = srv.Project(p.ID)
	got := p.Cards[0]
	assert.Empty(t, got.UploadedImage)
	selected := 0
	for _, opt := range got.ImageOptions {
		if opt.IsSelected {
			selected++
			assert.Equal(t, card.ImageOptions[1].ID, opt.ID)
		}
	}
	assert.Equal(t, 1, selected)
}

func TestGenerateKeepsExistingOptions(t *testing.T) {
	ctx := context.Background()
	srv, c := newTestClient(t)
	p, _ := c.CreateProject(ctx, "Batch", "", nil)
	p, err := c.ParseInput(ctx, p.ID, "Lamp", nil)
	require.NoError(t, err)
	_, err = c.GenerateImages(ctx, p.ID, backend.GenerateRequest{NumImagesPerProduct: 2})
	require.NoError(t, err)
	before, _ := srv.Project(p.ID)
	_, err = c.SelectImage(ctx, before.Cards[0].ID, before.Cards[0].ImageOptions[0].ID)
	require.NoError(t, err)

	_, err = c.ParseInput(ctx, p.ID, "Desk", nil)
	require.NoError(t, err)
	_, err = c.GenerateImages(ctx, p.ID, backend.GenerateRequest{NumImagesPerProduct: 4})
	require.NoError(t, err)

	after, _ := srv.Project(p.ID)
	require.Len(t, after.Cards, 2)
	assert.Equal(t, domain.StatusImageSelected, after.Cards[0].Status)
	assert.Equal(t, before.Cards[0].ImageOptions[0].ID, after.Cards[0].ImageOptions[0].ID)
	assert.Len(t, after.Cards[0].ImageOptions, 2)
	assert.Len(t, after.Cards[1].ImageOptions, 4)
}

func TestFailNext(t *testing.T) {
	ctx := context.Background()
	srv, c := newTestClient(t)
	p, err := c.CreateProject(ctx, "Batch", "", nil)
	require.NoError(t, err)

	srv.FailNext(RouteGet, http.StatusInternalServerError)
	_, err = c.GetProject(ctx, p.ID)
	var re *backend.RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusInternalServerError, re.Status)
	assert.Equal(t, "failed to refresh project", err.Error())

	_, err = c.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls(RouteGet))
}

func TestUnknownIDs(t *testing.T) {
	ctx := context.Background()
	_, c := newTestClient(t)

	_, err := c.GetProject(ctx, "missing")
	var re *backend.RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusNotFound, re.Status)

	_, err = c.SelectImage(ctx, "missing", "opt")
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusNotFound, re.Status)
}

func TestUploadRejectsNonImage(t *testing.T) {
	ctx := context.Background()
	srv, c := newTestClient(t)
	p, _ := c.CreateProject(ctx, "Batch", "", nil)
	p, err := c.ParseInput(ctx, p.ID, "Lamp", nil)
	require.NoError(t, err)

	bogus := imaging.Upload{Name: "notes.txt", ContentType: "image/png", Data: []byte("plain text")}
	_, err = c.UploadImage(ctx, p.Cards[0].ID, bogus)
	var re *backend.RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.Status)

	stored, _ := srv.Project(p.ID)
	assert.Equal(t, domain.StatusPending, stored.Cards[0].Status)
}

func TestHealthcheck(t *testing.T) {
	rec := httptest.NewRecorder()
	New().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
