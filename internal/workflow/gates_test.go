package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bulkimage/internal/domain"
)

func card(id string, st domain.CardStatus, options int) domain.ProductCard {
	c := domain.ProductCard{ID: id, ProductName: "product " + id, Status: st}
	for i := 0; i < options; i++ {
		c.ImageOptions = append(c.ImageOptions, domain.ImageOption{
			ID:          id + "-opt",
			Source:      "test",
			OriginalURL: "http://img/" + id,
		})
	}
	return c
}

var allPhases = []domain.Phase{domain.PhaseInput, domain.PhaseParsed, domain.PhaseGenerated, domain.PhaseCompleted}

func TestCanProcessOverEveryStatusPair(t *testing.T) {
	for _, phase := range allPhases {
		for _, a := range domain.AllCardStatuses {
			for _, b := range domain.AllCardStatuses {
				cards := []domain.ProductCard{card("a", a, 2), card("b", b, 2)}
				chosen := a == domain.StatusImageSelected || a == domain.StatusImageUploaded ||
					b == domain.StatusImageSelected || b == domain.StatusImageUploaded
				want := (phase == domain.PhaseGenerated || phase == domain.PhaseCompleted) && chosen
				assert.Equal(t, want, CanProcess(phase, cards), "phase=%v a=%v b=%v", phase, a, b)
			}
		}
	}
}

func TestCanProcessNoCards(t *testing.T) {
	for _, phase := range allPhases {
		assert.False(t, CanProcess(phase, nil), phase.String())
	}
}

func TestNeedsImages(t *testing.T) {
	assert.False(t, NeedsImages(nil))
	assert.True(t, NeedsImages([]domain.ProductCard{card("a", domain.StatusPending, 3)}))
	assert.True(t, NeedsImages([]domain.ProductCard{card("a", domain.StatusImagesFetched, 0)}))
	assert.True(t, NeedsImages([]domain.ProductCard{card("a", domain.StatusFailed, 0)}))
	assert.False(t, NeedsImages([]domain.ProductCard{
		card("a", domain.StatusImagesFetched, 3),
		card("b", domain.StatusImageSelected, 1),
		card("c", domain.StatusCompleted, 2),
	}))
}

func TestCanGenerate(t *testing.T) {
	full := []domain.ProductCard{card("a", domain.StatusImagesFetched, 3)}
	missing := []domain.ProductCard{card("a", domain.StatusImagesFetched, 3), card("b", domain.StatusPending, 0)}

	assert.False(t, CanGenerate(domain.PhaseInput, missing))
	assert.True(t, CanGenerate(domain.PhaseParsed, full))
	assert.True(t, CanGenerate(domain.PhaseParsed, nil))
	assert.False(t, CanGenerate(domain.PhaseGenerated, full))
	assert.True(t, CanGenerate(domain.PhaseGenerated, missing))
	assert.False(t, CanGenerate(domain.PhaseCompleted, full))
	assert.True(t, CanGenerate(domain.PhaseCompleted, missing))
}

func TestExampleScenarioTwoCards(t *testing.T) {
	cards := []domain.ProductCard{
		card("a", domain.StatusPending, 0),
		card("b", domain.StatusImagesFetched, 3),
	}
	g := Evaluate(domain.PhaseGenerated, cards)
	assert.True(t, g.NeedsImages)
	assert.True(t, g.CanGenerate)
	assert.False(t, g.CanProcess)
	assert.Equal(t, "Generate Missing Images", g.GenerateLabel)

	cards[1].Status = domain.StatusImageSelected
	cards[1].ImageOptions[0].IsSelected = true
	g = Evaluate(domain.PhaseGenerated, cards)
	assert.True(t, g.CanProcess)
	assert.True(t, g.CanGenerate)
}

func TestEvaluateIsPure(t *testing.T) {
	cards := []domain.ProductCard{card("a", domain.StatusImageUploaded, 1)}
	first := Evaluate(domain.PhaseCompleted, cards)
	second := Evaluate(domain.PhaseCompleted, cards)
	assert.Equal(t, first, second)
	assert.Equal(t, "Processing completed! All images have been processed.", first.Message)
}

func TestStatusMessages(t *testing.T) {
	full := []domain.ProductCard{card("a", domain.StatusImagesFetched, 2)}
	missing := []domain.ProductCard{card("a", domain.StatusPending, 0)}

	assert.Empty(t, StatusMessage(domain.PhaseInput, full))
	assert.Contains(t, StatusMessage(domain.PhaseParsed, full), "Products parsed successfully")
	assert.Contains(t, StatusMessage(domain.PhaseGenerated, missing), "Some cards need images")
	assert.Contains(t, StatusMessage(domain.PhaseGenerated, full), "Images loaded")
	assert.Contains(t, StatusMessage(domain.PhaseCompleted, missing), "Some cards still need images")
	assert.Equal(t, "Generate Images", GenerateLabel(domain.PhaseParsed, missing))
}
