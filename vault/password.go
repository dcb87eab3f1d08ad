package vault

import (
	"github.com/go-playground/validator/v10"

	"github.com/jpfluger/encyphrix/xerr"
)

// validate is a package-level validator instance; go-playground's
// docs recommend caching one rather than constructing it per call.
var validate = validator.New()

// masterPasswordRequirements is the struct-tag floor a master
// password must clear before the vault will derive an outer key from
// it. It intentionally checks only length: unlike a login password, a
// master password that is long enough gains more from Argon2id's cost
// than from character-class rules, and the core has no telemetry to
// run a dictionary-strength estimator against.
type masterPasswordRequirements struct {
	Password string `validate:"required,min=8"`
}

// ValidateMasterPassword rejects master passwords below the core's
// minimum length floor.
func ValidateMasterPassword(pw string) error {
	if err := validate.Struct(masterPasswordRequirements{Password: pw}); err != nil {
		return xerr.Wrap(xerr.KindInvalidInput, err, "vault: master password does not meet minimum requirements")
	}
	return nil
}
