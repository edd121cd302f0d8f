package store

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/swanstudios/studio/core"
)

var (
	itemTypeTag  = "itemtype"
	itemTypeText = "item type must be one of fixed_package, monthly_package or product"
)

// InitValidators registers the store validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(itemTypeTag, func(fl validator.FieldLevel) bool {
		it := ItemType(fl.Field().String())
		for _, t := range ItemTypes {
			if t == it {
				return true
			}
		}
		return false
	})
	core.RegisterCustomTranslation(validate, translator, itemTypeTag, itemTypeText)
}
