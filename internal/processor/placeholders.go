package processor

import "FOM-CERTS/internal/models"

// ExtractPlaceholders lists the distinct token names of a template in the
// order they first appear. Record fields used inside generated pages are
// not caller data and are left out.
func ExtractPlaceholders(t *models.Template) []string {
	var placeholders []string
	seen := make(map[string]bool)

	add := func(name string) {
		if name != "" && !seen[name] {
			placeholders = append(placeholders, name)
			seen[name] = true
		}
	}

	var walk func([]models.Element)
	walk = func(elements []models.Element) {
		for _, el := range elements {
			for _, part := range Scan(el.Content) {
				if part.IsToken() {
					add(part.Token)
				}
			}
			if el.List != nil {
				add(el.List.Field)
				walk(el.List.Cover)
			}
		}
	}
	walk(t.Elements)

	return placeholders
}
