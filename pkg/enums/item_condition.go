package enums

import "fmt"

// ItemCondition grades the physical state of a stock lot.
type ItemCondition string

const (
	ItemConditionNew     ItemCondition = "new"
	ItemConditionGood    ItemCondition = "good"
	ItemConditionFair    ItemCondition = "fair"
	ItemConditionDamaged ItemCondition = "damaged"
	ItemConditionExpired ItemCondition = "expired"
)

var validItemConditions = []ItemCondition{
	ItemConditionNew,
	ItemConditionGood,
	ItemConditionFair,
	ItemConditionDamaged,
	ItemConditionExpired,
}

// IsValid reports whether the value is a known ItemCondition.
func (i ItemCondition) IsValid() bool {
	for _, candidate := range validItemConditions {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseItemCondition converts the raw string to ItemCondition.
func ParseItemCondition(value string) (ItemCondition, error) {
	for _, candidate := range validItemConditions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item condition %q", value)
}
