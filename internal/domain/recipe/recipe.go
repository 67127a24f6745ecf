// Package recipe models AI-generated recipes and the chat transcript kept
// around them. Recipes are ephemeral: regenerated per request and never
// persisted client-side.
package recipe

// Ingredient is one recipe ingredient with its amount.
type Ingredient struct {
	ItemName string  `json:"item_name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// Recipe is a generated recipe keyed on the user's current inventory.
type Recipe struct {
	RecipeName         string       `json:"recipe_name"`
	Description        string       `json:"description"`
	Ingredients        []Ingredient `json:"ingredients"`
	Steps              []string     `json:"steps"`
	MissingIngredients []Ingredient `json:"missing_ingredients"`
}
