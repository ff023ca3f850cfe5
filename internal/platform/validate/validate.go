package validate

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const dateOnly = "2006-01-02"

var ErrBadDate = errors.New("fecha inválida")

// ParseDate は RFC3339 か YYYY-MM-DD（UTC の 0 時）を受け付ける
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrBadDate
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation(dateOnly, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, ErrBadDate
}

func isoDate(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	if v == "" {
		// 空は required/omitempty に任せる
		return true
	}
	_, err := ParseDate(v)
	return err == nil
}

var (
	once   sync.Once
	regErr error
)

// Register は gin の validator エンジンに isodate を登録する（main から一度だけ）
func Register() error {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			regErr = errors.New("validator engine is not go-playground/validator")
			return
		}
		regErr = v.RegisterValidation("isodate", isoDate)
	})
	return regErr
}
