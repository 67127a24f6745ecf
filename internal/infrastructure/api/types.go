package api

import (
	"github.com/Sachin-dot-py/Grocify/internal/domain/recipe"
)

// TokenPair is the credential pair issued on login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// UserInfo is the authenticated user's profile.
type UserInfo struct {
	Username            string   `json:"username"`
	DietaryRestrictions []string `json:"dietary_restrictions,omitempty"`
}

// Product is the identity resolved from a barcode lookup.
type Product struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Extraction is the result of image-based item recognition. ExpiryDate is
// empty when the model could not read a date off the packaging.
type Extraction struct {
	ItemName   string `json:"item_name"`
	ExpiryDate string `json:"expiry_date,omitempty"`
}

// ItemInfo is the enrichment result for a named item.
type ItemInfo struct {
	EstimatedExpiry   string `json:"estimated_expiry"`
	DietaryCompatible bool   `json:"dietary_compatible"`
}

// AddItemRequest is the final add-item submission. Barcode is omitted for
// the image capture path.
type AddItemRequest struct {
	Barcode    string `json:"barcode,omitempty"`
	Name       string `json:"name"`
	Image      string `json:"image"`
	ExpiryDate string `json:"expiry_date"`
}

// CustomRecipeConstraints narrows custom recipe generation.
type CustomRecipeConstraints struct {
	DietaryRestrictions []string `json:"dietary_restrictions"`
	Cuisine             string   `json:"cuisine"`
	SpecialRequests     string   `json:"special_requests"`
}

// ChatRequest carries the full client-held transcript plus the recipe
// context on every turn.
type ChatRequest struct {
	Messages    []recipe.Message    `json:"messages"`
	RecipeName  string              `json:"recipe_name"`
	Description string              `json:"description"`
	Ingredients []recipe.Ingredient `json:"ingredients"`
	Steps       []string            `json:"steps"`
}
