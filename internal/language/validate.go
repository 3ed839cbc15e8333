package language

import (
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"
	"github.com/vektah/gqlparser/v2/validator/rules"
)

var defaultRules = rules.NewDefaultRules()

// Validate checks doc against schema using rs, or the specified rule set when rs is nil.
//
// maxErrors > 0 bounds the number of reported errors: once the budget is spent,
// further violations are dropped instead of being collected. maxErrors <= 0
// reports everything.
func Validate(schema *Schema, doc *QueryDocument, rs *rules.Rules, maxErrors int) gqlerror.List {
	if rs == nil {
		rs = defaultRules
	}
	if maxErrors <= 0 {
		return validator.ValidateWithRules(schema, doc, rs)
	}

	remaining := maxErrors
	capped := rules.NewRules()
	for name, fn := range rs.GetInner() {
		capped.AddRule(name, func(observers *validator.Events, addError validator.AddErrFunc) {
			fn(observers, func(options ...validator.ErrorOption) {
				if remaining == 0 {
					return
				}
				remaining--
				addError(options...)
			})
		})
	}

	errs := validator.ValidateWithRules(schema, doc, capped)
	if len(errs) > maxErrors {
		errs = errs[:maxErrors]
	}
	return errs
}
