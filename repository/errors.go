package repository

import (
	"errors"
	"strings"

	"github.com/tnqbao/gau-platform/apperror"
	"gorm.io/gorm"
)

// translate maps gorm sentinel errors onto domain errors. Either mapping may
// be nil to leave that case untouched.
func translate(err error, notFound, duplicate *apperror.AppError) error {
	if err == nil {
		return nil
	}
	if notFound != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound.WithCause(err)
	}
	if duplicate != nil && isDuplicate(err) {
		return duplicate.WithCause(err)
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// likePrefix escapes LIKE wildcards so user input is matched literally.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
