package enums

import "fmt"

// ProductCategory classifies catalog entries for filtering and reporting.
type ProductCategory string

const (
	ProductCategoryRawMaterial  ProductCategory = "raw_material"
	ProductCategoryComponent    ProductCategory = "component"
	ProductCategoryFinishedGood ProductCategory = "finished_good"
	ProductCategoryConsumable   ProductCategory = "consumable"
	ProductCategorySparePart    ProductCategory = "spare_part"
)

var validProductCategories = []ProductCategory{
	ProductCategoryRawMaterial,
	ProductCategoryComponent,
	ProductCategoryFinishedGood,
	ProductCategoryConsumable,
	ProductCategorySparePart,
}

// IsValid reports whether the value is a known ProductCategory.
func (p ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductCategory converts the raw string to ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range validProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}
