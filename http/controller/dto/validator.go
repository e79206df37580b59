package dto

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/tnqbao/gau-platform/utils"
)

var functionNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// RegisterValidators adds the bucketname, objectpath and functionname tags
// to gin's validator. Safe to call more than once.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("bucketname", func(fl validator.FieldLevel) bool {
		return utils.IsValidBucketName(fl.Field().String())
	}); err != nil {
		return err
	}
	if err := v.RegisterValidation("objectpath", func(fl validator.FieldLevel) bool {
		_, err := utils.NormalizeObjectPath(fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}
	return v.RegisterValidation("functionname", func(fl validator.FieldLevel) bool {
		return functionNamePattern.MatchString(fl.Field().String())
	})
}
