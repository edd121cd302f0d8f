package gamification

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/swanstudios/studio/core"
)

var (
	tierTag  = "tier"
	tierText = "tier must be one of bronze, silver, gold or platinum"

	thresholdsTag  = "tierthresholds"
	thresholdsText = "tier thresholds must cover all tiers, start at 0 and be strictly ascending"

	requirementTypeTag  = "requirementtype"
	requirementTypeText = "invalid requirement type"

	transactionTypeTag  = "transactiontype"
	transactionTypeText = "transaction type must be one of earn, spend, bonus, adjustment or expire"

	requiredIfTag = "required_if"
)

// InitValidators registers the gamification validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(tierTag, func(fl validator.FieldLevel) bool {
		return Tier(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, tierTag, tierText)

	_ = validate.RegisterValidation(thresholdsTag, func(fl validator.FieldLevel) bool {
		th, ok := fl.Field().Interface().(TierThresholds)
		return ok && ValidThresholds(th)
	})
	core.RegisterCustomTranslation(validate, translator, thresholdsTag, thresholdsText)

	_ = validate.RegisterValidation(requirementTypeTag, func(fl validator.FieldLevel) bool {
		rt := RequirementType(fl.Field().String())
		for _, t := range RequirementTypes {
			if t == rt {
				return true
			}
		}
		return false
	})
	core.RegisterCustomTranslation(validate, translator, requirementTypeTag, requirementTypeText)

	_ = validate.RegisterValidation(transactionTypeTag, func(fl validator.FieldLevel) bool {
		switch TransactionType(fl.Field().String()) {
		case TransactionEarn, TransactionSpend, TransactionBonus, TransactionAdjustment, TransactionExpire:
			return true
		}
		return false
	})
	core.RegisterCustomTranslation(validate, translator, transactionTypeTag, transactionTypeText)

	core.RegisterCustomTranslation(validate, translator, requiredIfTag, "this field is required", true)
}
