// Package testutils provides shared helpers for the test suites: data
// factories, token minting and a counting fake backend.
package testutils

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Sachin-dot-py/Grocify/internal/domain/inventory"
	"github.com/Sachin-dot-py/Grocify/internal/domain/recipe"
)

// ItemFactory creates inventory items with deterministic randomness.
type ItemFactory struct {
	faker *gofakeit.Faker
}

// NewItemFactory creates an item factory with a fixed seed so failures
// reproduce.
func NewItemFactory(seed int64) *ItemFactory {
	return &ItemFactory{faker: gofakeit.New(seed)}
}

// Item creates an item expiring the given number of days from now.
// Negative values produce already-expired items.
func (f *ItemFactory) Item(daysUntilExpiry int) inventory.Item {
	expiry := time.Now().AddDate(0, 0, daysUntilExpiry)
	return inventory.Item{
		ID:         f.faker.UUID(),
		Name:       f.faker.Fruit(),
		Image:      f.faker.ImageURL(64, 64),
		ExpiryDate: expiry.Format(inventory.DateLayout),
		Quantity:   f.faker.Number(1, 10),
		Unit:       "pcs",
	}
}

// Items creates n items with expiry dates spread over the next two weeks.
func (f *ItemFactory) Items(n int) []inventory.Item {
	items := make([]inventory.Item, n)
	for i := range items {
		items[i] = f.Item(f.faker.Number(-2, 14))
	}
	return items
}

// RecipeFactory creates recipes for stubbing generation responses.
type RecipeFactory struct {
	faker *gofakeit.Faker
}

// NewRecipeFactory creates a recipe factory with a fixed seed.
func NewRecipeFactory(seed int64) *RecipeFactory {
	return &RecipeFactory{faker: gofakeit.New(seed)}
}

// Recipe creates a complete recipe with ingredients and steps.
func (f *RecipeFactory) Recipe() recipe.Recipe {
	ingredients := make([]recipe.Ingredient, 3)
	for i := range ingredients {
		ingredients[i] = recipe.Ingredient{
			ItemName: f.faker.Vegetable(),
			Quantity: float64(f.faker.Number(1, 4)),
			Unit:     "cups",
		}
	}
	return recipe.Recipe{
		RecipeName:  f.faker.Dinner(),
		Description: f.faker.Sentence(8),
		Ingredients: ingredients,
		Steps: []string{
			f.faker.Sentence(6),
			f.faker.Sentence(6),
			f.faker.Sentence(6),
		},
	}
}

// MintToken creates a signed HS256 JWT for use as a test access or refresh
// token. The signature is never verified client-side; the token only needs
// to look real on the wire.
func MintToken(subject string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret-key-for-testing-only"))
	if err != nil {
		panic(err)
	}
	return signed
}
