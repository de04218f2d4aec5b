package mcpserver

// WireFormatContract describes the JSON shapes LLM consumers must use for
// amounts, servings and timings when creating recipes.
const WireFormatContract = `# Deepdish Recipe Wire Format

## Ingredients

` + "```" + `json
{"name": "Tomato", "description": "Ripe red tomato", "diet_violations": ["vegan"]}
` + "```" + `

Known diet violation tags: vegan, vegetarian, gluten_free, lactose_free, nut_free.
Unknown tags are dropped silently. Ingredient names are unique.

## Recipes

` + "```" + `json
{
  "name": "Shakshuka",
  "description": "Eggs poached in tomato sauce",
  "steps": ["Fry the onion", "Add tomatoes", "Crack the eggs"],
  "ingredients": [
    {"ingredient_id": "<uuid>", "amount": {"tag": "grams", "amount": 400}},
    {"ingredient_id": "<uuid>", "amount": {"tag": "other", "amount": 4, "unit": "eggs"}, "optional": false, "notes": "free range"}
  ],
  "time": {"prep": 600, "cook": 1200},
  "servings": {"tag": "from_to", "from": 2, "to": 3}
}
` + "```" + `

## Rules

1. **Amount tags**: milliliters, grams, teaspoons, cup, other. ` + "`" + `other` + "`" + ` requires a
   ` + "`" + `unit` + "`" + ` name. Amounts are non-negative numbers. Tablespoons are written as
   teaspoons (1 tbsp = 3 tsp).
2. **Servings**: ` + "`" + `{"tag":"from_to","from":N,"to":M}` + "`" + ` with N <= M, or
   ` + "`" + `{"tag":"exact","value":N}` + "`" + `.
3. **Time** maps a phase label to whole seconds.
4. **Steps and ingredients are required** and must not be empty. Every
   ` + "`" + `ingredient_id` + "`" + ` must reference an existing ingredient, at most once per recipe.
5. An ingredient used by any recipe cannot be deleted.
`
