package pipeline

import "github.com/rewired-gh/powerprices/internal/models"

// BuildCountryIndex extracts the country → ISO3 mapping of the raw table.
// The first code observed for a country wins.
func BuildCountryIndex(records []models.PriceRecord) models.CountryIndex {
	index := make(models.CountryIndex)
	for _, r := range records {
		if _, ok := index[r.Country]; !ok {
			index[r.Country] = r.ISO3
		}
	}
	return index
}
